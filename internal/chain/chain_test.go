package chain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestKeccak256_KnownVectors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"abc", "abc", "0x4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Keccak256([]byte(tc.input)).String()
			if got != tc.want {
				t.Errorf("Keccak256(%q) = %s, want %s", tc.input, got, tc.want)
			}
		})
	}
}

func TestKeccak256_MultiplePartsEqualConcatenation(t *testing.T) {
	if Keccak256([]byte("ab"), []byte("c")) != Keccak256([]byte("abc")) {
		t.Error("hashing parts should equal hashing the concatenation")
	}
}

func TestDoubleKeccak(t *testing.T) {
	secret := []byte("SecretCode")
	inner := Keccak256(secret)
	want := Keccak256(inner[:])

	if got := DoubleKeccak(secret); got != want {
		t.Errorf("DoubleKeccak = %s, want %s", got, want)
	}

	if DoubleKeccak(secret) == Keccak256(secret) {
		t.Error("double hash must differ from single hash")
	}
}

func TestParseHash_RoundTrip(t *testing.T) {
	h := DoubleKeccak([]byte("SecretCode"))

	parsed, err := ParseHash(h.String())
	if err != nil {
		t.Fatalf("ParseHash failed: %v", err)
	}
	if parsed != h {
		t.Errorf("round trip mismatch: got %s, want %s", parsed, h)
	}

	upper := "0x" + strings.ToUpper(h.String()[2:])
	parsed, err = ParseHash(upper)
	if err != nil {
		t.Fatalf("ParseHash uppercase failed: %v", err)
	}
	if parsed != h {
		t.Error("uppercase hex should parse to the same hash")
	}
}

func TestParseHash_Invalid(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no prefix", strings.Repeat("ab", 32)},
		{"too short", "0x" + strings.Repeat("ab", 31)},
		{"too long", "0x" + strings.Repeat("ab", 33)},
		{"not hex", "0x" + strings.Repeat("zz", 32)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseHash(tc.input); err != ErrInvalidHash {
				t.Errorf("expected ErrInvalidHash, got %v", err)
			}
		})
	}
}

func TestHash_Equal(t *testing.T) {
	a := Keccak256([]byte("a"))
	b := Keccak256([]byte("b"))

	if !a.Equal(a) {
		t.Error("hash should equal itself")
	}
	if a.Equal(b) {
		t.Error("different hashes should not be equal")
	}
	if !(Hash{}).IsZero() {
		t.Error("zero hash should report IsZero")
	}
	if a.IsZero() {
		t.Error("digest should not be zero")
	}
}

func TestParseAddress(t *testing.T) {
	const raw = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

	a, err := ParseAddress(raw)
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}

	if a.String() != strings.ToLower(raw) {
		t.Errorf("String() = %s, want lowercase %s", a.String(), strings.ToLower(raw))
	}

	if a.IsZero() {
		t.Error("address should not be zero")
	}

	if !ZeroAddress.IsZero() {
		t.Error("ZeroAddress should be zero")
	}

	if ZeroAddress.String() != "0x0000000000000000000000000000000000000000" {
		t.Errorf("unexpected zero address form: %s", ZeroAddress)
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, input := range []string{"", "0x", "70997970c51812dc3a010c7d01b50e0d17dc79c8", "0x1234", "0xgg997970c51812dc3a010c7d01b50e0d17dc79c8"} {
		if _, err := ParseAddress(input); err != ErrInvalidAddress {
			t.Errorf("ParseAddress(%q): expected ErrInvalidAddress, got %v", input, err)
		}
	}
}

func TestAddress_JSON(t *testing.T) {
	type wrapper struct {
		Owner Address `json:"owner"`
		Hash  Hash    `json:"hash"`
	}

	in := wrapper{
		Owner: MustParseAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"),
		Hash:  DoubleKeccak([]byte("SecretCode")),
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	if !strings.Contains(string(data), `"owner":"0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc"`) {
		t.Errorf("address should marshal as hex string, got %s", data)
	}

	var out wrapper
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if out != in {
		t.Errorf("JSON round trip mismatch: got %+v, want %+v", out, in)
	}
}
