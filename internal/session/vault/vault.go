// Package vault persists session tokens on disk, sealed with a key derived
// from an operator passphrase.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"boutique/backoffice/internal/session"
)

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

var ErrWrongPassphrase = errors.New("session file cannot be opened with this passphrase")

type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

type File struct {
	path       string
	passphrase []byte
}

func NewFile(path string, passphrase string) *File {
	return &File{path: path, passphrase: []byte(passphrase)}
}

func (f *File) Load(_ context.Context) (session.Tokens, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return session.Tokens{}, nil
	}
	if err != nil {
		return session.Tokens{}, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return session.Tokens{}, fmt.Errorf("decode session file: %w", err)
	}
	if len(env.Salt) != saltSize || len(env.Nonce) != nonceSize {
		return session.Tokens{}, fmt.Errorf("decode session file: bad header")
	}

	key, err := f.deriveKey(env.Salt)
	if err != nil {
		return session.Tokens{}, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)

	plain, ok := secretbox.Open(nil, env.Box, &nonce, key)
	if !ok {
		return session.Tokens{}, ErrWrongPassphrase
	}

	var tokens session.Tokens
	if err := json.Unmarshal(plain, &tokens); err != nil {
		return session.Tokens{}, fmt.Errorf("decode tokens: %w", err)
	}
	return tokens, nil
}

func (f *File) Save(_ context.Context, tokens session.Tokens) error {
	plain, err := json.Marshal(tokens)
	if err != nil {
		return err
	}

	env := envelope{Version: 1, Salt: make([]byte, saltSize), Nonce: make([]byte, nonceSize)}
	if _, err := io.ReadFull(rand.Reader, env.Salt); err != nil {
		return err
	}
	if _, err := io.ReadFull(rand.Reader, env.Nonce); err != nil {
		return err
	}

	key, err := f.deriveKey(env.Salt)
	if err != nil {
		return err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)
	env.Box = secretbox.Seal(nil, plain, &nonce, key)

	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *File) Clear(_ context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *File) deriveKey(salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(f.passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
