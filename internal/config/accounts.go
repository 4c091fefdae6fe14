package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// labelPattern constrains account labels because they become directory names
// and dedup namespace keys.
var labelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-]{0,63}$`)

// Account describes one mailbox to scan.
type Account struct {
	// Label namespaces this account's output and dedup state. Empty only
	// in the single-account fallback.
	Label    string `json:"label"`
	Server   string `json:"server"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Folder   string `json:"folder"`
}

// LoadAccounts returns the mailboxes to scan. When an accounts file is
// configured it is authoritative; otherwise a single unlabeled account is
// built from the imap.* keys.
func LoadAccounts(cfg *Config) ([]Account, error) {
	path := cfg.GetString("scan.accounts_file")
	if path == "" {
		return singleAccount(cfg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s defines no accounts", path)
	}

	seen := make(map[string]bool, len(accounts))
	for i := range accounts {
		a := &accounts[i]
		if !labelPattern.MatchString(a.Label) {
			return nil, fmt.Errorf("invalid account label %q", a.Label)
		}
		if seen[a.Label] {
			return nil, fmt.Errorf("duplicate account label %q", a.Label)
		}
		seen[a.Label] = true

		if a.Server == "" || a.Username == "" {
			return nil, fmt.Errorf("account %q is missing server or username", a.Label)
		}
		if a.Port == 0 {
			a.Port = 993
		}
		if a.Folder == "" {
			a.Folder = "INBOX"
		}

		pw, err := expandPassword(a.Password)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", a.Label, err)
		}
		a.Password = pw
	}

	return accounts, nil
}

func singleAccount(cfg *Config) ([]Account, error) {
	server := cfg.GetString("imap.server")
	if server == "" {
		return nil, fmt.Errorf("no accounts file configured and imap.server is not set")
	}
	pw, err := expandPassword(cfg.GetString("imap.password"))
	if err != nil {
		return nil, err
	}
	return []Account{{
		Server:   server,
		Port:     cfg.GetInt("imap.port"),
		Username: cfg.GetString("imap.username"),
		Password: pw,
		Folder:   cfg.GetString("imap.folder"),
	}}, nil
}

// expandPassword resolves the ${ENV_VAR} indirection so credentials can stay
// out of the accounts file.
func expandPassword(raw string) (string, error) {
	if !strings.HasPrefix(raw, "${") || !strings.HasSuffix(raw, "}") {
		return raw, nil
	}
	name := raw[2 : len(raw)-1]
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("password references unset environment variable %s", name)
	}
	return value, nil
}
