package sshauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

func newKey(t *testing.T) gossh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := gossh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

func authorizedLine(key gossh.PublicKey, comment string) string {
	line := strings.TrimSpace(string(gossh.MarshalAuthorizedKey(key)))
	if comment != "" {
		line += " " + comment
	}
	return line
}

func TestParseAndAuthorize(t *testing.T) {
	alice, anon, stranger := newKey(t), newKey(t), newKey(t)
	data := strings.Join([]string{
		"# dashboard users",
		"",
		authorizedLine(alice, "alice@laptop"),
		authorizedLine(anon, ""),
	}, "\n")

	ks, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 2, ks.Len())

	u, ok := ks.Authorize(alice)
	require.True(t, ok)
	assert.Equal(t, "alice@laptop", u.Username)
	assert.Equal(t, "ssh-ed25519", u.KeyType)
	assert.Equal(t, gossh.FingerprintSHA256(alice), u.Fingerprint)

	u, ok = ks.Authorize(anon)
	require.True(t, ok)
	assert.Equal(t, u.Fingerprint, u.Username)

	_, ok = ks.Authorize(stranger)
	assert.False(t, ok)
	_, ok = ks.Authorize(nil)
	assert.False(t, ok)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("ssh-ed25519 not-base64"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestLoadAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authorized_keys")
	first, second := newKey(t), newKey(t)
	require.NoError(t, os.WriteFile(path, []byte(authorizedLine(first, "first")+"\n"), 0o600))

	ks, err := Load(path)
	require.NoError(t, err)
	_, ok := ks.Authorize(first)
	assert.True(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(authorizedLine(second, "second")+"\n"), 0o600))
	require.NoError(t, ks.Reload())
	_, ok = ks.Authorize(first)
	assert.False(t, ok)
	u, ok := ks.Authorize(second)
	require.True(t, ok)
	assert.Equal(t, "second", u.Username)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	ks, err := Parse(nil)
	require.NoError(t, err)
	assert.Error(t, ks.Reload())
}
