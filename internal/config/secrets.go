package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mcoot/ari-accounts/internal/dependencies/random"
)

// Secret sizes in bytes
const (
	SecretKeySize  = 1 << 14
	CaptchaKeySize = 64
)

// ErrEmptySecret is returned when a secret file exists but holds nothing
var ErrEmptySecret = errors.New("secret file is empty")

// LoadOrCreateSecret reads the secret at path, generating and persisting
// size random bytes with mode 0600 when the file does not exist yet.
func LoadOrCreateSecret(path string, size int, rnd random.Random) ([]byte, error) {
	secret, err := os.ReadFile(path)
	if err == nil {
		if len(secret) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptySecret, path)
		}
		return secret, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read secret: %w", err)
	}

	secret, err = rnd.Bytes(size)
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	if err := WriteSecret(path, secret); err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Another process created it first
			return LoadOrCreateSecret(path, size, rnd)
		}
		return nil, err
	}
	return secret, nil
}

// WriteSecret creates path with mode 0600, failing with fs.ErrExist when it
// already exists. The secret is written to a temporary file and linked into
// place, so readers never see a partial file.
func WriteSecret(path string, secret []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create secret dir: %w", err)
	}

	// CreateTemp opens with mode 0600
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp secret: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(secret); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write secret: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close secret: %w", err)
	}

	// Link never replaces an existing file, unlike Rename
	return os.Link(tmp.Name(), path)
}
