package timeauth

import (
	"fmt"
	"strings"
)

// Config selects and configures a time authority.
type Config struct {
	Name      string `koanf:"name"`
	DrandURL  string `koanf:"drand_url"`
	ChainHash string `koanf:"chain_hash"`
}

// NewAuthority builds the authority named by cfg. An empty name selects the
// system clock.
func NewAuthority(cfg Config) (Authority, error) {
	switch strings.ToLower(cfg.Name) {
	case "", "system":
		return &SystemAuthority{}, nil
	case "drand":
		return NewConfiguredDrandAuthority(cfg), nil
	default:
		return nil, fmt.Errorf("unknown time authority %q", cfg.Name)
	}
}
