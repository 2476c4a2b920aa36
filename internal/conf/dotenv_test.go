package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TG_DIGEST_DOTENV_TEST=loaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TG_DIGEST_DOTENV_TEST") })

	if !LoadDotEnv(path) {
		t.Fatal("Expected .env to load")
	}
	if got := os.Getenv("TG_DIGEST_DOTENV_TEST"); got != "loaded" {
		t.Errorf("Expected variable from .env, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")) {
		t.Error("Expected a missing .env to report false")
	}
}

func TestLoadDotEnv_KeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DB_FILE=from-dotenv.db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_FILE", "from-env.db")

	LoadDotEnv(path)
	if got := os.Getenv("DB_FILE"); got != "from-env.db" {
		t.Errorf("Expected existing variable to win, got %q", got)
	}
}
