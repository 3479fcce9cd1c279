package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"gopkg.in/yaml.v3"
)

// Keychain is a YAML file mapping secret names to base64 secretbox-sealed
// values. The file never holds plaintext.
type Keychain struct {
	path string
	key  [32]byte

	mu     sync.RWMutex
	sealed map[string]string
}

type keychainFile struct {
	Version int               `yaml:"version"`
	Secrets map[string]string `yaml:"secrets"`
}

// ParseKey accepts a 32-byte key encoded as hex or standard base64.
func ParseKey(s string) ([32]byte, error) {
	var key [32]byte
	if b, err := hex.DecodeString(s); err == nil && len(b) == 32 {
		copy(key[:], b)
		return key, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) != 32 {
		return key, errors.New("keychain key must be 32 bytes, hex or base64 encoded")
	}
	copy(key[:], b)
	return key, nil
}

// GenerateKey returns a random key in hex form.
func GenerateKey() (string, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(key[:]), nil
}

// OpenKeychain loads path, or starts an empty keychain if it does not exist.
func OpenKeychain(path string, key [32]byte) (*Keychain, error) {
	k := &Keychain{path: path, key: key, sealed: map[string]string{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return k, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keychain: %w", err)
	}
	var f keychainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode keychain: %w", err)
	}
	if f.Secrets != nil {
		k.sealed = f.Secrets
	}
	return k, nil
}

// Set seals value under key. Call Save to persist.
func (k *Keychain) Set(_ context.Context, key string, value []byte) error {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], value, &nonce, &k.key)
	k.mu.Lock()
	k.sealed[key] = base64.StdEncoding.EncodeToString(sealed)
	k.mu.Unlock()
	return nil
}

func (k *Keychain) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.RLock()
	b64, ok := k.sealed[key]
	k.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	sealed, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(sealed) < 24 {
		return nil, errors.New("invalid secret data")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plain, ok := secretbox.Open(nil, sealed[24:], &nonce, &k.key)
	if !ok {
		return nil, errors.New("decryption failed")
	}
	return plain, nil
}

func (k *Keychain) Delete(key string) {
	k.mu.Lock()
	delete(k.sealed, key)
	k.mu.Unlock()
}

// List returns the stored secret names, sorted.
func (k *Keychain) List() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	keys := make([]string, 0, len(k.sealed))
	for name := range k.sealed {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the keychain atomically with 0600 permissions.
func (k *Keychain) Save() error {
	k.mu.RLock()
	data, err := yaml.Marshal(keychainFile{Version: 1, Secrets: k.sealed})
	k.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0700); err != nil {
		return err
	}
	tmp := k.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, k.path)
}
