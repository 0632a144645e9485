package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Port  int    `yaml:"port"`
	valid bool
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	s.valid = true
	return nil
}

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ExpandsEnvAndKeepsDefaults(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "strand")
	s := &sample{Port: 3001}
	if err := Load(write(t, "name: ${SAMPLE_NAME}\n"), s); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Name != "strand" || s.Port != 3001 || !s.valid {
		t.Errorf("sample = %+v", s)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	s := &sample{}
	err := Load(write(t, "port: 0\n"), s)
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &sample{}); err == nil {
		t.Fatal("missing file should fail")
	}
}

func TestLoadOptional(t *testing.T) {
	s := &sample{Port: 8080}
	found, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), s)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if !s.valid {
		t.Error("defaults should still be validated")
	}

	found, err = LoadOptional(write(t, "port: 9000\n"), s)
	if err != nil || !found || s.Port != 9000 {
		t.Errorf("found = %v, err = %v, port = %d", found, err, s.Port)
	}
}
