// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads service credentials from a directory of plain-text
// files. Each file holds one secret: the file name is the key and the
// trimmed contents are the value.
//
// Recognised keys: client-id, client-secret.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/formflow/internal/logging"
	"github.com/pdiddy/formflow/pkg/types"
)

// DefaultDir is the secrets directory read when none is configured.
const DefaultDir = ".secrets"

// Key files.
const (
	KeyClientID     = "client-id"
	KeyClientSecret = "client-secret"
)

// Load reads all files in dir and returns a map of file name to trimmed
// contents. A missing directory is not an error; Load returns an empty
// map. Unreadable files are logged as warnings and skipped.
func Load(dir string, log *logging.Logger) (map[string]string, error) {
	l := logging.OrDiscard(log)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			l.Warn().Err(err).Str("secret", name).Msg("secrets.unreadable")
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Fill returns creds with any empty field taken from the loaded secrets.
// Values already set win.
func Fill(creds types.Credentials, secrets map[string]string) types.Credentials {
	if strings.TrimSpace(creds.ClientID) == "" {
		creds.ClientID = secrets[KeyClientID]
	}
	if strings.TrimSpace(creds.ClientSecret) == "" {
		creds.ClientSecret = secrets[KeyClientSecret]
	}
	return creds
}
