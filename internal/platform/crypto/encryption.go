// Package crypto seals payroll documents at rest with AES-256-GCM under keys
// derived from DATA_ENCRYPTION_KEY.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sealVersion prefixes every sealed blob so the format can change later.
const sealVersion byte = 1

var (
	ErrBadKey     = errors.New("DATA_ENCRYPTION_KEY must be 32 bytes, hex or base64 encoded")
	ErrUnreadable = errors.New("sealed data unreadable")
)

// Service seals and opens documents. The zero Service has no key and passes
// data through unchanged.
type Service struct {
	key  []byte
	aead cipher.AEAD
}

func New(key string) (*Service, error) {
	if key == "" {
		return &Service{}, nil
	}
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	return withKey(raw)
}

func withKey(key []byte) (*Service, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Service{key: key, aead: aead}, nil
}

// Derive returns a service keyed by an HKDF-SHA256 subkey bound to purpose.
func (s *Service) Derive(purpose string) (*Service, error) {
	if !s.Configured() {
		return &Service{}, nil
	}
	sub := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, s.key, nil, []byte("payengine/"+purpose)), sub); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return withKey(sub)
}

func (s *Service) Configured() bool {
	return s != nil && s.aead != nil
}

// Seal encrypts plain and binds it to binding (for example a paycheck ID), so
// a blob copied onto another record fails to open.
func (s *Service) Seal(plain, binding []byte) ([]byte, error) {
	if !s.Configured() || len(plain) == 0 {
		return plain, nil
	}
	out := make([]byte, 1+s.aead.NonceSize(), 1+s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	out[0] = sealVersion
	if _, err := io.ReadFull(rand.Reader, out[1:]); err != nil {
		return nil, err
	}
	return s.aead.Seal(out, out[1:], plain, binding), nil
}

func (s *Service) Open(sealed, binding []byte) ([]byte, error) {
	if !s.Configured() || len(sealed) == 0 {
		return sealed, nil
	}
	header := 1 + s.aead.NonceSize()
	if len(sealed) < header+s.aead.Overhead() || sealed[0] != sealVersion {
		return nil, ErrUnreadable
	}
	plain, err := s.aead.Open(nil, sealed[1:header], sealed[header:], binding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return plain, nil
}

func decodeKey(raw string) ([]byte, error) {
	for _, decode := range []func(string) ([]byte, error){
		hex.DecodeString,
		base64.StdEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
	} {
		if key, err := decode(raw); err == nil && len(key) == 32 {
			return key, nil
		}
	}
	return nil, ErrBadKey
}
