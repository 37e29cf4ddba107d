package timeauth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/drand/tlock"
	thttp "github.com/drand/tlock/networks/http"
)

const (
	// DefaultDrandURL is the public drand HTTP relay.
	DefaultDrandURL = "https://api.drand.sh"

	// QuicknetChainHash is the chain hash for drand quicknet.
	QuicknetChainHash = "52db9ba70e0cc0f6eaf7803dd07447a1f5477735fd3f661792ba94600c84e971"
)

// HTTPDoer is an interface for making HTTP requests.
// This allows injecting mock HTTP clients for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// TimelockBox abstracts tlock encryption/decryption for testing.
type TimelockBox interface {
	// Encrypt time-locks data to the target round.
	// Returns base64-encoded ciphertext.
	Encrypt(data []byte, targetRound uint64) (string, error)

	// Decrypt decrypts the tlock ciphertext.
	// Ciphertext is base64-encoded.
	Decrypt(ciphertextB64 string) ([]byte, error)
}

// DrandAuthority is a time authority based on the drand public randomness beacon.
// The current time is derived from the latest published round, so a host with
// a skewed clock cannot unlock early.
type DrandAuthority struct {
	BaseURL    string
	ChainHash  string
	HTTPClient HTTPDoer    // injectable HTTP client
	Timelock   TimelockBox // injectable tlock implementation

	mu   sync.Mutex
	info *DrandInfo // cached network info
}

type DrandInfo struct {
	Period      int    `json:"period"`
	GenesisTime int64  `json:"genesis_time"`
	Hash        string `json:"hash"`
	GroupHash   string `json:"groupHash"`
	SchemeID    string `json:"schemeID"`
	BeaconID    string `json:"beaconID"`
}

type drandPublicResponse struct {
	Round      uint64 `json:"round"`
	Randomness string `json:"randomness"`
}

func (d *DrandAuthority) Name() string {
	return "drand"
}

// Now returns the publication time of the latest published round.
func (d *DrandAuthority) Now(ctx context.Context) (time.Time, error) {
	info, err := d.FetchInfo(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch drand info: %w", err)
	}

	round, err := d.fetchLatestRound(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch latest round: %w", err)
	}

	return RoundTime(info, round), nil
}

// RoundAt calculates the drand round number for a given time.
func (d *DrandAuthority) RoundAt(t time.Time) (uint64, error) {
	info, err := d.FetchInfo(context.Background())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch drand info: %w", err)
	}

	return RoundAt(info, t)
}

// TimeLockEncrypt encrypts data using tlock to the specified round.
func (d *DrandAuthority) TimeLockEncrypt(data []byte, targetRound uint64) (string, error) {
	return d.Timelock.Encrypt(data, targetRound)
}

// TimeLockDecrypt decrypts time-locked data using drand randomness.
func (d *DrandAuthority) TimeLockDecrypt(ctx context.Context, ciphertextB64 string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Timelock.Decrypt(ciphertextB64)
}

// RoundAt returns the first round of info published at or after t.
// Round 1 is published at genesis, so round = ceil((unix_time - genesis_time) / period) + 1.
func RoundAt(info *DrandInfo, t time.Time) (uint64, error) {
	if info.Period <= 0 {
		return 0, fmt.Errorf("invalid drand period %d", info.Period)
	}

	elapsedSeconds := t.Unix() - info.GenesisTime
	if elapsedSeconds < 0 {
		return 0, fmt.Errorf("time is before drand genesis")
	}

	targetRound := uint64(elapsedSeconds) / uint64(info.Period)
	if uint64(elapsedSeconds)%uint64(info.Period) != 0 {
		targetRound++
	}

	return targetRound + 1, nil
}

// RoundTime returns the publication time of round: genesis + (round-1) * period.
// Round 0 maps to genesis.
func RoundTime(info *DrandInfo, round uint64) time.Time {
	if round == 0 {
		return time.Unix(info.GenesisTime, 0).UTC()
	}
	return time.Unix(info.GenesisTime+int64(round-1)*int64(info.Period), 0).UTC()
}

func (d *DrandAuthority) FetchInfo(ctx context.Context) (*DrandInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil {
		return d.info, nil
	}

	body, err := d.get(ctx, "/info")
	if err != nil {
		return nil, err
	}

	var info DrandInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}

	if info.Hash != "" && d.ChainHash != "" && !strings.EqualFold(info.Hash, d.ChainHash) {
		return nil, fmt.Errorf("chain hash mismatch: expected %s, got %s", d.ChainHash, info.Hash)
	}

	d.info = &info
	return &info, nil
}

func (d *DrandAuthority) fetchLatestRound(ctx context.Context) (uint64, error) {
	body, err := d.get(ctx, "/public/latest")
	if err != nil {
		return 0, err
	}

	var publicResp drandPublicResponse
	if err := json.Unmarshal(body, &publicResp); err != nil {
		return 0, err
	}

	return publicResp.Round, nil
}

func (d *DrandAuthority) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("drand request %s failed: %d", path, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// RealTimelockBox implements TimelockBox using the actual tlock library.
type RealTimelockBox struct {
	BaseURL   string
	ChainHash string
}

// Encrypt time-locks data using tlock.
func (r *RealTimelockBox) Encrypt(data []byte, targetRound uint64) (string, error) {
	network, err := thttp.NewNetwork(r.BaseURL, r.ChainHash)
	if err != nil {
		return "", fmt.Errorf("failed to create tlock network: %w", err)
	}

	var ciphertext bytes.Buffer
	if err := tlock.New(network).Encrypt(&ciphertext, bytes.NewReader(data), targetRound); err != nil {
		return "", fmt.Errorf("failed to tlock encrypt: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Decrypt decrypts the tlock ciphertext.
func (r *RealTimelockBox) Decrypt(ciphertextB64 string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tlock ciphertext: %w", err)
	}

	network, err := thttp.NewNetwork(r.BaseURL, r.ChainHash)
	if err != nil {
		return nil, fmt.Errorf("failed to create tlock network: %w", err)
	}

	var plaintext bytes.Buffer
	if err := tlock.New(network).Decrypt(&plaintext, bytes.NewReader(ciphertext)); err != nil {
		return nil, err
	}

	return plaintext.Bytes(), nil
}

// NewDrandAuthority creates a drand authority for the quicknet network.
func NewDrandAuthority() *DrandAuthority {
	return NewDrandAuthorityWithDeps(http.DefaultClient, nil)
}

// NewDrandAuthorityWithDeps creates a quicknet drand authority with injectable dependencies.
func NewDrandAuthorityWithDeps(httpClient HTTPDoer, timelock TimelockBox) *DrandAuthority {
	return NewDrandAuthorityFor(DefaultDrandURL, QuicknetChainHash, httpClient, timelock)
}

// NewDrandAuthorityFor creates a drand authority for any relay and chain.
// A nil timelock selects the real tlock implementation.
func NewDrandAuthorityFor(relayURL, chainHash string, httpClient HTTPDoer, timelock TimelockBox) *DrandAuthority {
	relayURL = strings.TrimRight(relayURL, "/")

	if timelock == nil {
		timelock = &RealTimelockBox{
			BaseURL:   relayURL,
			ChainHash: chainHash,
		}
	}

	return &DrandAuthority{
		BaseURL:    relayURL + "/" + chainHash,
		ChainHash:  chainHash,
		HTTPClient: httpClient,
		Timelock:   timelock,
	}
}
