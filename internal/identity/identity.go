// Package identity manages the local agent's key pair. The public key
// names the author of every record and edge the agent writes.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/thinglink/internal/ir"
)

// KeyPrefix marks an ed25519 identity key.
const KeyPrefix = "ed25519:"

// Agent is a local identity with its private key.
type Agent struct {
	priv ed25519.PrivateKey
}

// Generate creates a fresh agent.
func Generate() (*Agent, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Agent{priv: priv}, nil
}

// FromSeed derives an agent from a 32-byte seed.
func FromSeed(seed []byte) (*Agent, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed is %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return &Agent{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Key returns the agent's identity key.
func (a *Agent) Key() ir.IdentityKey {
	return FormatKey(a.PublicKey())
}

// PublicKey returns the agent's public key.
func (a *Agent) PublicKey() ed25519.PublicKey {
	return a.priv.Public().(ed25519.PublicKey)
}

// Save writes the agent's seed to path with owner-only permissions,
// creating parent directories.
func (a *Agent) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, a.priv.Seed(), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// Load reads an agent seed written by Save.
func Load(path string) (*Agent, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat key file: %w", err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		slog.Warn("key file is readable by others", "path", path, "mode", info.Mode().Perm().String())
	}
	seed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	a, err := FromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return a, nil
}

// LoadOrCreate loads the agent at path, generating and saving a new one if
// the file does not exist. created reports whether a key was generated.
func LoadOrCreate(path string) (a *Agent, created bool, err error) {
	a, err = Load(path)
	if err == nil {
		return a, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, err
	}
	if a, err = Generate(); err != nil {
		return nil, false, err
	}
	if err := a.Save(path); err != nil {
		return nil, false, err
	}
	return a, true, nil
}

// FormatKey renders pub as an identity key.
func FormatKey(pub ed25519.PublicKey) ir.IdentityKey {
	return ir.IdentityKey(KeyPrefix + hex.EncodeToString(pub))
}

// ParseKey extracts the public key from an identity key.
func ParseKey(key ir.IdentityKey) (ed25519.PublicKey, error) {
	rest, ok := strings.CutPrefix(string(key), KeyPrefix)
	if !ok {
		return nil, fmt.Errorf("identity key %q: missing %q prefix", key, KeyPrefix)
	}
	pub, err := hex.DecodeString(rest)
	if err != nil {
		return nil, fmt.Errorf("identity key %q: %w", key, err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity key %q: %d bytes, want %d", key, len(pub), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(pub), nil
}
