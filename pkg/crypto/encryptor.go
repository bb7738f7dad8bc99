// Package crypto seals sensitive fields and archives with age (X25519).
package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// ErrEmptyCiphertext is returned when opening a value that was never sealed.
var ErrEmptyCiphertext = errors.New("nothing to open")

// Sealer encrypts to its own recipient and decrypts with its identity.
type Sealer struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
	ephemeral bool
}

// NewSealer parses an AGE-SECRET-KEY identity. An empty key generates a
// throwaway identity, which is only suitable for development: values sealed
// with it cannot be opened after a restart.
func NewSealer(identityKey string) (*Sealer, error) {
	var (
		identity *age.X25519Identity
		err      error
	)
	if identityKey == "" {
		identity, err = age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
	} else {
		identity, err = age.ParseX25519Identity(identityKey)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
	}
	return &Sealer{identity: identity, recipient: identity.Recipient(), ephemeral: identityKey == ""}, nil
}

// Ephemeral reports whether the identity was generated for this process only.
func (s *Sealer) Ephemeral() bool { return s.ephemeral }

// GenerateKey returns a new identity string for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating identity: %w", err)
	}
	return identity.String(), nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing encryptor: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Sealer) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("creating decryptor: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plaintext: %w", err)
	}
	return plaintext, nil
}

// SealField seals an optional text column; "" stays empty.
func (s *Sealer) SealField(v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	return s.Seal([]byte(v))
}

// OpenField reverses SealField.
func (s *Sealer) OpenField(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	plaintext, err := s.Open(b)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Recipient returns the public age1... key.
func (s *Sealer) Recipient() string {
	return s.recipient.String()
}
