package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"aishi/internal/chain"
	"aishi/internal/config"
	"aishi/internal/token"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "create the registry and grant the genesis admin",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "admin",
				Usage:    "genesis admin address (receives admin and minter roles)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			admin, err := chain.ParseAddress(c.String("admin"))
			if err != nil {
				return fmt.Errorf("--admin: %w", err)
			}

			rt, err := openRuntime(c, config.WithOverride("token.admin", admin.String()))
			if err != nil {
				return err
			}

			minters := rt.registry.Minters()
			return output(c, map[string]any{"minters": minters, "tokens": rt.registry.TotalSupply()}, func(w io.Writer) {
				fmt.Fprintf(w, "registry ready: %d tokens, minters:", rt.registry.TotalSupply())
				for _, m := range minters {
					fmt.Fprintf(w, " %s", m)
				}
				fmt.Fprintln(w)
			})
		},
	}
}

func hashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "print the commitment for a secret: keccak256(keccak256(secret))",
		ArgsUsage: "<secret>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("hash takes exactly one argument")
			}
			h := chain.DoubleKeccak([]byte(c.Args().First()))
			return output(c, map[string]string{"hash": h.String()}, func(w io.Writer) {
				fmt.Fprintln(w, h)
			})
		},
	}
}

// commitmentFlags accept either the committed hash or the secret it derives from.
func commitmentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "hash", Usage: "commitment, 0x-prefixed 32-byte hex"},
		&cli.StringFlag{Name: "secret", Usage: "secret; hashed as keccak256(keccak256(secret))"},
	}
}

func commitment(c *cli.Context) (chain.Hash, error) {
	switch {
	case c.IsSet("hash") && c.IsSet("secret"):
		return chain.Hash{}, errors.New("use either --hash or --secret, not both")
	case c.IsSet("hash"):
		h, err := chain.ParseHash(c.String("hash"))
		if err != nil {
			return chain.Hash{}, fmt.Errorf("--hash: %w", err)
		}
		return h, nil
	case c.IsSet("secret"):
		return chain.DoubleKeccak([]byte(c.String("secret"))), nil
	default:
		return chain.Hash{}, errors.New("--hash or --secret is required")
	}
}

func mintCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "mint a locked token (requires the minter role)",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "recipient address", Required: true},
			&cli.StringFlag{Name: "unlock-from", Usage: "RFC3339 time or Unix seconds", Required: true},
			&cli.StringFlag{Name: "payload", Usage: "file sealed into the token until unlock (- for stdin)"},
		}, commitmentFlags()...),
		Action: func(c *cli.Context) error {
			from, err := caller(c, true)
			if err != nil {
				return err
			}
			to, err := chain.ParseAddress(c.String("to"))
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			unlockFrom, err := token.ParseUnlockTime(c.String("unlock-from"))
			if err != nil {
				return err
			}
			hash, err := commitment(c)
			if err != nil {
				return err
			}

			var opts []token.MintOption
			if path := c.String("payload"); path != "" {
				data, err := readPayload(c, path)
				if err != nil {
					return err
				}
				opts = append(opts, token.WithPayload(data))
			}

			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			id, err := rt.registry.MintToken(c.Context, from, to, unlockFrom, hash, opts...)
			if err != nil {
				return err
			}
			return output(c, map[string]any{"id": id, "events": rt.recorder.Events()}, func(w io.Writer) {
				fmt.Fprintln(w, id)
			})
		},
	}
}

// readPayload reads a payload file, or stdin for "-", within the size limit.
func readPayload(c *cli.Context, path string) ([]byte, error) {
	var r io.Reader
	if path == "-" {
		r = c.App.Reader
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("cannot open payload: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, token.MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("cannot read payload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("payload is empty")
	}
	if len(data) > token.MaxPayloadSize {
		return nil, fmt.Errorf("payload exceeds maximum size of %d bytes", token.MaxPayloadSize)
	}
	return data, nil
}

func idArg(c *cli.Context) (uint64, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("%s takes exactly one token id", c.Command.Name)
	}
	return token.ParseTokenID(c.Args().First())
}

func addressArg(c *cli.Context) (chain.Address, error) {
	if c.NArg() != 1 {
		return chain.ZeroAddress, fmt.Errorf("%s takes exactly one address", c.Command.Name)
	}
	return chain.ParseAddress(c.Args().First())
}

func unlockCommand() *cli.Command {
	return &cli.Command{
		Name:      "unlock",
		Usage:     "unlock a token with its committed value",
		ArgsUsage: "<id>",
		Flags:     commitmentFlags(),
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			who, err := caller(c, false)
			if err != nil {
				return err
			}
			hash, err := commitment(c)
			if err != nil {
				return err
			}

			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			if err := rt.registry.UnlockToken(c.Context, who, hash, id); err != nil {
				return err
			}
			return output(c, map[string]any{"id": id, "unlocked": true, "events": rt.recorder.Events()}, func(w io.Writer) {
				fmt.Fprintf(w, "token %d unlocked\n", id)
			})
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "list all tokens and their lock state",
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				return errors.New("status takes no arguments")
			}
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			toks := rt.registry.Tokens()
			return output(c, toks, func(w io.Writer) {
				fmt.Fprint(w, token.FormatStatusOutput(toks))
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "show one token",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			t, err := rt.registry.Token(id)
			if err != nil {
				return err
			}
			return output(c, t, func(w io.Writer) {
				fmt.Fprint(w, token.FormatStatusOutput([]token.Token{t}))
			})
		},
	}
}

func uriCommand() *cli.Command {
	return &cli.Command{
		Name:      "uri",
		Usage:     "print a token's metadata URI",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			uri, err := rt.registry.TokenURI(id)
			if err != nil {
				return err
			}
			return output(c, map[string]string{"uri": uri}, func(w io.Writer) {
				fmt.Fprintln(w, uri)
			})
		},
	}
}

func ownerCommand() *cli.Command {
	return &cli.Command{
		Name:      "owner",
		Usage:     "print a token's owner",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			owner, err := rt.registry.OwnerOf(id)
			if err != nil {
				return err
			}
			return output(c, map[string]chain.Address{"owner": owner}, func(w io.Writer) {
				fmt.Fprintln(w, owner)
			})
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "print how many tokens an address holds",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			addr, err := addressArg(c)
			if err != nil {
				return err
			}
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			n, err := rt.registry.BalanceOf(addr)
			if err != nil {
				return err
			}
			return output(c, map[string]uint64{"balance": n}, func(w io.Writer) {
				fmt.Fprintln(w, n)
			})
		},
	}
}

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfer",
		Usage:     "transfer a token you own",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "to", Usage: "recipient address", Required: true},
		},
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			from, err := caller(c, true)
			if err != nil {
				return err
			}
			to, err := chain.ParseAddress(c.String("to"))
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			if err := rt.registry.TransferFrom(c.Context, from, from, to, id); err != nil {
				return err
			}
			return output(c, map[string]any{"id": id, "from": from, "to": to, "events": rt.recorder.Events()}, func(w io.Writer) {
				fmt.Fprintf(w, "token %d transferred to %s\n", id, to)
			})
		},
	}
}

func grantMinterCommand() *cli.Command {
	return &cli.Command{
		Name:      "grant-minter",
		Usage:     "grant the minter role (requires the admin role)",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			return changeMinter(c, true)
		},
	}
}

func revokeMinterCommand() *cli.Command {
	return &cli.Command{
		Name:      "revoke-minter",
		Usage:     "revoke the minter role (requires the admin role)",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			return changeMinter(c, false)
		},
	}
}

func changeMinter(c *cli.Context, grant bool) error {
	account, err := addressArg(c)
	if err != nil {
		return err
	}
	admin, err := caller(c, true)
	if err != nil {
		return err
	}
	rt, err := openRuntime(c)
	if err != nil {
		return err
	}

	verb := "granted"
	if grant {
		err = rt.registry.GrantMinter(c.Context, admin, account)
	} else {
		verb = "revoked"
		err = rt.registry.RevokeMinter(c.Context, admin, account)
	}
	if err != nil {
		return err
	}
	return output(c, map[string]any{"account": account, "minter": grant}, func(w io.Writer) {
		fmt.Fprintf(w, "minter role %s: %s\n", verb, account)
	})
}

func revealCommand() *cli.Command {
	return &cli.Command{
		Name:      "reveal",
		Usage:     "write an unlocked token's sealed payload",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Usage: "write to file instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			id, err := idArg(c)
			if err != nil {
				return err
			}
			rt, err := openRuntime(c)
			if err != nil {
				return err
			}
			data, err := rt.registry.RevealPayload(c.Context, id)
			if err != nil {
				return err
			}

			if path := c.String("out"); path != "" {
				if err := os.WriteFile(path, data, 0600); err != nil {
					return fmt.Errorf("cannot write payload: %w", err)
				}
				return nil
			}
			_, err = c.App.Writer.Write(data)
			return err
		},
	}
}

// output prints v as JSON under --json, otherwise calls text.
func output(c *cli.Context, v any, text func(io.Writer)) error {
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(c.App.Writer)
	return nil
}
