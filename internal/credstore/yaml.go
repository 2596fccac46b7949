package credstore

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLStore reads credential entries from a YAML file:
//
//	credentials:
//	  - credential: "tenantA_key"
//	    tenant: "tenantA"
type YAMLStore struct {
	path string
}

// NewYAMLStore returns a store reading from the YAML file at path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

type credentialsFile struct {
	Credentials []Entry `yaml:"credentials"`
}

// Load reads and parses the file. The file is re-read on every call, so an
// explicit reload picks up edits without restarting the process.
func (s *YAMLStore) Load(_ context.Context) ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var f credentialsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if err := checkDuplicates(f.Credentials); err != nil {
		return nil, fmt.Errorf("invalid credentials file: %w", err)
	}
	return f.Credentials, nil
}

// Close is a no-op for the file-backed store.
func (s *YAMLStore) Close() error {
	return nil
}
