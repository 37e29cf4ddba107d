//go:build testmode

package timeauth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// testModeHTTPDoer serves drand quicknet responses computed from the local clock.
type testModeHTTPDoer struct{}

func (t *testModeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	path := req.URL.Path

	// Genesis: 1677685200 (2023-03-01 13:00:00 UTC), Period: 3 seconds
	info := DrandInfo{
		Period:      3,
		GenesisTime: 1677685200,
		Hash:        QuicknetChainHash,
		SchemeID:    "bls-unchained-on-g1",
		BeaconID:    "quicknet",
	}

	var body []byte
	switch {
	case strings.HasSuffix(path, "/info"):
		body, _ = json.Marshal(info)
	case strings.HasSuffix(path, "/public/latest"):
		round := uint64((time.Now().Unix()-info.GenesisTime)/int64(info.Period)) + 1
		body, _ = json.Marshal(drandPublicResponse{
			Round:      round,
			Randomness: "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
		})
	default:
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Body:       io.NopCloser(strings.NewReader("not found")),
		}, nil
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}, nil
}

// testModeTimelockBox is a reversible stand-in for tlock.
type testModeTimelockBox struct{}

func (t *testModeTimelockBox) Encrypt(data []byte, targetRound uint64) (string, error) {
	return "TESTMODE_TLOCK:" + base64.StdEncoding.EncodeToString(data), nil
}

func (t *testModeTimelockBox) Decrypt(ciphertextB64 string) ([]byte, error) {
	if strings.HasPrefix(ciphertextB64, "TESTMODE_TLOCK:") {
		return base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertextB64, "TESTMODE_TLOCK:"))
	}
	return nil, io.ErrUnexpectedEOF
}

// NewConfiguredDrandAuthority creates an offline DrandAuthority for test mode.
func NewConfiguredDrandAuthority(cfg Config) *DrandAuthority {
	return NewDrandAuthorityWithDeps(&testModeHTTPDoer{}, &testModeTimelockBox{})
}
