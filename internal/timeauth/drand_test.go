package timeauth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

// Test helpers to avoid import cycle with testutil

const (
	testGenesis = int64(1677685200)
	testPeriod  = 3
)

func newTestDrandAuthority(currentRound uint64) *DrandAuthority {
	fakeHTTP := &fakeHTTPDoer{
		Responses: map[string]*http.Response{
			"/info":          makeDrandInfoResponse(QuicknetChainHash),
			"/public/latest": makeDrandPublicResponse(currentRound),
		},
	}

	return NewDrandAuthorityWithDeps(fakeHTTP, &fakeTimelockBox{})
}

type fakeHTTPDoer struct {
	Responses map[string]*http.Response
	Errors    map[string]error
	Requests  []string
}

func (f *fakeHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	path := req.URL.Path
	f.Requests = append(f.Requests, path)
	for suffix, err := range f.Errors {
		if strings.HasSuffix(path, suffix) {
			return nil, err
		}
	}
	for suffix, resp := range f.Responses {
		if strings.HasSuffix(path, suffix) {
			return cloneResponse(resp), nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func cloneResponse(resp *http.Response) *http.Response {
	bodyBytes, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	return &http.Response{
		StatusCode: resp.StatusCode,
		Body:       io.NopCloser(bytes.NewReader(bodyBytes)),
	}
}

func makeDrandInfoResponse(hash string) *http.Response {
	info := DrandInfo{
		Period:      testPeriod,
		GenesisTime: testGenesis,
		Hash:        hash,
		SchemeID:    "bls-unchained-on-g1",
		BeaconID:    "quicknet",
	}
	body, _ := json.Marshal(info)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

func makeDrandPublicResponse(round uint64) *http.Response {
	resp := drandPublicResponse{
		Round:      round,
		Randomness: "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
	}
	body, _ := json.Marshal(resp)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(body)),
	}
}

type fakeTimelockBox struct{}

func (f *fakeTimelockBox) Encrypt(data []byte, targetRound uint64) (string, error) {
	return "FAKE_TLOCK:" + string(data), nil
}

func (f *fakeTimelockBox) Decrypt(ciphertextB64 string) ([]byte, error) {
	if strings.HasPrefix(ciphertextB64, "FAKE_TLOCK:") {
		return []byte(strings.TrimPrefix(ciphertextB64, "FAKE_TLOCK:")), nil
	}
	return nil, io.ErrUnexpectedEOF
}

func TestDrandAuthority_Name(t *testing.T) {
	authority := newTestDrandAuthority(1000)

	if authority.Name() != "drand" {
		t.Errorf("expected name 'drand', got %s", authority.Name())
	}
}

func TestDrandAuthority_Now_DerivedFromLatestRound(t *testing.T) {
	authority := newTestDrandAuthority(1000)

	now, err := authority.Now(context.Background())
	if err != nil {
		t.Fatalf("Now failed: %v", err)
	}

	// Round 1 is published at genesis, so round 1000 went out 999 periods later
	want := time.Unix(testGenesis+999*testPeriod, 0).UTC()
	if !now.Equal(want) {
		t.Errorf("Now = %v, want %v", now, want)
	}

	if now.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", now.Location())
	}
}

func TestDrandAuthority_Now_CachesInfo(t *testing.T) {
	fakeHTTP := &fakeHTTPDoer{
		Responses: map[string]*http.Response{
			"/info":          makeDrandInfoResponse(QuicknetChainHash),
			"/public/latest": makeDrandPublicResponse(5),
		},
	}
	authority := NewDrandAuthorityWithDeps(fakeHTTP, &fakeTimelockBox{})

	for i := 0; i < 3; i++ {
		if _, err := authority.Now(context.Background()); err != nil {
			t.Fatalf("Now failed: %v", err)
		}
	}

	infoCalls := 0
	for _, path := range fakeHTTP.Requests {
		if strings.HasSuffix(path, "/info") {
			infoCalls++
		}
	}
	if infoCalls != 1 {
		t.Errorf("expected /info to be fetched once, got %d", infoCalls)
	}
}

func TestDrandAuthority_NetworkFailure(t *testing.T) {
	// Test with HTTP client that returns errors
	fakeHTTP := &fakeHTTPDoer{
		Errors: map[string]error{
			"/public/latest": io.ErrUnexpectedEOF,
		},
		Responses: map[string]*http.Response{
			"/info": makeDrandInfoResponse(QuicknetChainHash),
		},
	}

	authority := NewDrandAuthorityWithDeps(fakeHTTP, &fakeTimelockBox{})

	now, err := authority.Now(context.Background())
	if err == nil {
		t.Error("expected error on network failure")
	}
	if !now.IsZero() {
		t.Errorf("expected zero time on failure, got %v", now)
	}
}

func TestDrandAuthority_BadStatus(t *testing.T) {
	fakeHTTP := &fakeHTTPDoer{}
	authority := NewDrandAuthorityWithDeps(fakeHTTP, &fakeTimelockBox{})

	_, err := authority.Now(context.Background())
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should mention status code, got: %v", err)
	}
}

func TestDrandAuthority_ChainHashMismatch(t *testing.T) {
	fakeHTTP := &fakeHTTPDoer{
		Responses: map[string]*http.Response{
			"/info":          makeDrandInfoResponse("deadbeef"),
			"/public/latest": makeDrandPublicResponse(1),
		},
	}
	authority := NewDrandAuthorityWithDeps(fakeHTTP, &fakeTimelockBox{})

	if _, err := authority.Now(context.Background()); err == nil || !strings.Contains(err.Error(), "chain hash mismatch") {
		t.Errorf("expected chain hash mismatch error, got %v", err)
	}
}

func TestDrandAuthority_RoundCalculation(t *testing.T) {
	// Our fake drand has period=3 and genesis_time=1677685200
	authority := newTestDrandAuthority(1000)

	testCases := []struct {
		name string
		at   time.Time
		want uint64
	}{
		{"exact round boundary", time.Unix(testGenesis+999*testPeriod, 0), 1000},
		{"one second after boundary rounds up", time.Unix(testGenesis+999*testPeriod+1, 0), 1001},
		{"genesis is round 1", time.Unix(testGenesis, 0), 1},
		{"one period after genesis", time.Unix(testGenesis+testPeriod, 0), 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			round, err := authority.RoundAt(tc.at)
			if err != nil {
				t.Fatalf("RoundAt failed: %v", err)
			}
			if round != tc.want {
				t.Errorf("RoundAt = %d, want %d", round, tc.want)
			}
		})
	}
}

func TestDrandAuthority_RoundAt_BeforeGenesis(t *testing.T) {
	authority := newTestDrandAuthority(1000)

	_, err := authority.RoundAt(time.Unix(testGenesis-1, 0))
	if err == nil {
		t.Error("expected error for time before genesis")
	}
}

func TestRoundTime_InverseOfRoundAt(t *testing.T) {
	info := &DrandInfo{Period: testPeriod, GenesisTime: testGenesis}

	for _, round := range []uint64{1, 2, 1000, 4_000_000} {
		at := RoundTime(info, round)
		got, err := RoundAt(info, at)
		if err != nil {
			t.Fatalf("RoundAt failed: %v", err)
		}
		if got != round {
			t.Errorf("RoundAt(RoundTime(%d)) = %d", round, got)
		}
	}
}

func TestRoundTime_RoundZeroIsGenesis(t *testing.T) {
	info := &DrandInfo{Period: testPeriod, GenesisTime: testGenesis}

	if got := RoundTime(info, 0); !got.Equal(time.Unix(testGenesis, 0)) {
		t.Errorf("RoundTime(0) = %v, want genesis", got)
	}
	if got := RoundTime(info, 1); !got.Equal(time.Unix(testGenesis, 0)) {
		t.Errorf("RoundTime(1) = %v, want genesis", got)
	}
}

// The reported time never runs ahead of the latest published round
func TestDrandAuthority_Now_NotAheadOfBeacon(t *testing.T) {
	authority := newTestDrandAuthority(1001)

	now, err := authority.Now(context.Background())
	if err != nil {
		t.Fatalf("Now failed: %v", err)
	}

	next := time.Unix(testGenesis+1001*testPeriod, 0)
	if !now.Before(next) {
		t.Errorf("Now = %v, must be before round 1002 publication at %v", now, next.UTC())
	}

	round, err := authority.RoundAt(now)
	if err != nil {
		t.Fatalf("RoundAt failed: %v", err)
	}
	if round != 1001 {
		t.Errorf("RoundAt(Now) = %d, want latest round 1001", round)
	}
}

func TestRoundAt_InvalidPeriod(t *testing.T) {
	if _, err := RoundAt(&DrandInfo{Period: 0}, time.Now()); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestDrandAuthority_TimeLockRoundTrip(t *testing.T) {
	authority := newTestDrandAuthority(1000)

	ct, err := authority.TimeLockEncrypt([]byte("data-key"), 1200)
	if err != nil {
		t.Fatalf("TimeLockEncrypt failed: %v", err)
	}

	pt, err := authority.TimeLockDecrypt(context.Background(), ct)
	if err != nil {
		t.Fatalf("TimeLockDecrypt failed: %v", err)
	}

	if string(pt) != "data-key" {
		t.Errorf("decrypted %q, want %q", pt, "data-key")
	}
}

func TestDrandAuthority_TimeLockDecrypt_CanceledContext(t *testing.T) {
	authority := newTestDrandAuthority(1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := authority.TimeLockDecrypt(ctx, "FAKE_TLOCK:x"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestNewDrandAuthorityFor_BaseURL(t *testing.T) {
	authority := NewDrandAuthorityFor("https://relay.example/", "abc123", &fakeHTTPDoer{}, nil)

	if authority.BaseURL != "https://relay.example/abc123" {
		t.Errorf("unexpected base URL: %s", authority.BaseURL)
	}

	box, ok := authority.Timelock.(*RealTimelockBox)
	if !ok {
		t.Fatalf("expected RealTimelockBox, got %T", authority.Timelock)
	}
	if box.BaseURL != "https://relay.example" || box.ChainHash != "abc123" {
		t.Errorf("unexpected timelock box config: %+v", box)
	}
}
