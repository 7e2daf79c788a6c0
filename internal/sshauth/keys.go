// Package sshauth authorizes dashboard SSH sessions against an
// authorized_keys file.
package sshauth

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	gossh "golang.org/x/crypto/ssh"
)

type User struct {
	Username    string
	KeyType     string
	Fingerprint string
}

// KeyStore maps SHA256 key fingerprints to users. The username is taken from
// the key comment, falling back to the fingerprint.
type KeyStore struct {
	path string

	mu    sync.RWMutex
	users map[string]User
}

// Load parses path. Blank lines and # comments are skipped; any other line
// that does not parse is an error.
func Load(path string) (*KeyStore, error) {
	ks := &KeyStore{path: path}
	if err := ks.Reload(); err != nil {
		return nil, err
	}
	return ks, nil
}

// Parse builds a store from authorized_keys content.
func Parse(data []byte) (*KeyStore, error) {
	users, err := parse(data)
	if err != nil {
		return nil, err
	}
	return &KeyStore{users: users}, nil
}

// Reload re-reads the file the store was loaded from.
func (ks *KeyStore) Reload() error {
	if ks.path == "" {
		return fmt.Errorf("key store has no backing file")
	}
	data, err := os.ReadFile(ks.path)
	if err != nil {
		return fmt.Errorf("read authorized keys: %w", err)
	}
	users, err := parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", ks.path, err)
	}
	ks.mu.Lock()
	ks.users = users
	ks.mu.Unlock()
	return nil
}

// FindByFingerprint returns the user for a SHA256 fingerprint.
func (ks *KeyStore) FindByFingerprint(fingerprint string) (User, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	u, ok := ks.users[fingerprint]
	return u, ok
}

// Authorize looks up key.
func (ks *KeyStore) Authorize(key gossh.PublicKey) (User, bool) {
	if key == nil {
		return User{}, false
	}
	return ks.FindByFingerprint(gossh.FingerprintSHA256(key))
}

func (ks *KeyStore) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.users)
}

func parse(data []byte) (map[string]User, error) {
	users := make(map[string]User)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, comment, _, _, err := gossh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		fp := gossh.FingerprintSHA256(key)
		name := strings.TrimSpace(comment)
		if name == "" {
			name = fp
		}
		users[fp] = User{Username: name, KeyType: key.Type(), Fingerprint: fp}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
