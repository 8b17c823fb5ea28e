package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// secretStore keeps API keys in a 0600 JSON file under the data dir, keyed
// by config key name ("openai.api_key").
type secretStore struct {
	path string
}

func newSecretStore(dataDir string) *secretStore {
	return &secretStore{path: filepath.Join(dataDir, "secrets.json")}
}

func (s *secretStore) all() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	secrets := make(map[string]string)
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file %s: %w", s.path, err)
	}
	return secrets, nil
}

func (s *secretStore) set(key, value string) error {
	secrets, err := s.all()
	if err != nil {
		return err
	}
	if value == "" {
		delete(secrets, key)
	} else {
		secrets[key] = value
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}
