package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configWithAccountsFile(t *testing.T, content string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := NewEmptyViper()
	v.Set("scan.accounts_file", path)
	return NewFromViper(v)
}

func TestLoadAccountsFromFile(t *testing.T) {
	t.Setenv("WORK_IMAP_PASSWORD", "s3cret")

	cfg := configWithAccountsFile(t, `[
		{"label": "work", "server": "imap.example.com", "username": "me@example.com", "password": "${WORK_IMAP_PASSWORD}"},
		{"label": "private", "server": "mail.example.org", "port": 1993, "username": "me", "password": "plain", "folder": "Archive"}
	]`)

	accounts, err := LoadAccounts(cfg)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	assert.Equal(t, "work", accounts[0].Label)
	assert.Equal(t, "s3cret", accounts[0].Password)
	assert.Equal(t, 993, accounts[0].Port)
	assert.Equal(t, "INBOX", accounts[0].Folder)

	assert.Equal(t, 1993, accounts[1].Port)
	assert.Equal(t, "plain", accounts[1].Password)
	assert.Equal(t, "Archive", accounts[1].Folder)
}

func TestLoadAccountsRejectsDuplicateLabels(t *testing.T) {
	cfg := configWithAccountsFile(t, `[
		{"label": "work", "server": "a", "username": "u", "password": "p"},
		{"label": "work", "server": "b", "username": "u", "password": "p"}
	]`)

	_, err := LoadAccounts(cfg)
	assert.ErrorContains(t, err, "duplicate account label")
}

func TestLoadAccountsRejectsInvalidLabel(t *testing.T) {
	tests := []string{"", "-leading-dash", "has space", "slash/label", "dots.are.out"}
	for _, label := range tests {
		cfg := configWithAccountsFile(t,
			`[{"label": "`+label+`", "server": "a", "username": "u", "password": "p"}]`)
		_, err := LoadAccounts(cfg)
		assert.ErrorContains(t, err, "invalid account label", "label %q", label)
	}
}

func TestLoadAccountsRejectsUnsetPasswordVariable(t *testing.T) {
	cfg := configWithAccountsFile(t,
		`[{"label": "work", "server": "a", "username": "u", "password": "${DEFINITELY_NOT_SET_VAR}"}]`)

	_, err := LoadAccounts(cfg)
	assert.ErrorContains(t, err, "DEFINITELY_NOT_SET_VAR")
}

func TestLoadAccountsRejectsEmptyFile(t *testing.T) {
	cfg := configWithAccountsFile(t, `[]`)
	_, err := LoadAccounts(cfg)
	assert.ErrorContains(t, err, "no accounts")
}

func TestLoadAccountsSingleAccountFallback(t *testing.T) {
	v := NewEmptyViper()
	v.Set("imap.server", "imap.example.com")
	v.Set("imap.username", "me@example.com")
	v.Set("imap.password", "pw")

	accounts, err := LoadAccounts(NewFromViper(v))
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	assert.Empty(t, accounts[0].Label)
	assert.Equal(t, "imap.example.com", accounts[0].Server)
	assert.Equal(t, 993, accounts[0].Port)
	assert.Equal(t, "INBOX", accounts[0].Folder)
}

func TestLoadAccountsFallbackRequiresServer(t *testing.T) {
	_, err := LoadAccounts(NewFromViper(NewEmptyViper()))
	assert.ErrorContains(t, err, "imap.server")
}
