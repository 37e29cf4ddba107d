package token

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"aishi/internal/store"
	"aishi/internal/timeauth"
)

const payloadAlgorithm = "aes-256-gcm"

// MaxPayloadSize bounds sealed payloads.
const MaxPayloadSize = 10 * 1024 * 1024

// sealPayload encrypts plaintext under a fresh data key and time-locks the
// key to the authority round covering unlockFrom.
func sealPayload(authority timeauth.Authority, unlockFrom time.Time, plaintext []byte) (*store.SealedPayload, error) {
	if len(plaintext) > MaxPayloadSize {
		return nil, fmt.Errorf("payload exceeds maximum size of %d bytes", MaxPayloadSize)
	}

	dek := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}
	defer clear(dek)

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	round, err := authority.RoundAt(unlockFrom)
	if err != nil {
		return nil, fmt.Errorf("time authority round lookup failed: %w", err)
	}

	keyTlock, err := authority.TimeLockEncrypt(dek, round)
	if err != nil {
		return nil, fmt.Errorf("time-lock encryption failed: %w", err)
	}

	return &store.SealedPayload{
		Algorithm:     payloadAlgorithm,
		Nonce:         base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:    gcm.Seal(nil, nonce, plaintext, nil),
		KeyTlockB64:   keyTlock,
		TargetRound:   round,
		TimeAuthority: authority.Name(),
	}, nil
}

// openPayload recovers the data key from the authority and decrypts p.
func openPayload(ctx context.Context, authority timeauth.Authority, p *store.SealedPayload) ([]byte, error) {
	if p.Algorithm != payloadAlgorithm {
		return nil, fmt.Errorf("unsupported payload algorithm %q", p.Algorithm)
	}
	if p.TimeAuthority != authority.Name() {
		return nil, fmt.Errorf("payload was sealed by time authority %q, registry uses %q", p.TimeAuthority, authority.Name())
	}

	dek, err := authority.TimeLockDecrypt(ctx, p.KeyTlockB64)
	if err != nil {
		return nil, fmt.Errorf("failed to recover data key: %w", err)
	}
	defer clear(dek)

	nonce, err := base64.StdEncoding.DecodeString(p.Nonce)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %w", err)
	}

	gcm, err := newGCM(dek)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce size %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, p.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("payload decryption failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
