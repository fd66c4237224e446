package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := Load(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("Load missing file error: %v", err)
	}
}

func TestLoad_LoadsValuesAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# comment\n" +
		"CHAT_COMPANY_ID=co_test\n" +
		"CHAT_BASE_URL=\"http://localhost:9000\"\n" +
		"export CHAT_AGENT_ID=agent_test\n" +
		"EXISTING=from_file\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("EXISTING", "already_set")
	t.Setenv("CHAT_COMPANY_ID", "")
	os.Unsetenv("CHAT_COMPANY_ID")
	t.Setenv("CHAT_BASE_URL", "")
	os.Unsetenv("CHAT_BASE_URL")
	t.Setenv("CHAT_AGENT_ID", "")
	os.Unsetenv("CHAT_AGENT_ID")

	if err := Load(envPath); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got := os.Getenv("CHAT_COMPANY_ID"); got != "co_test" {
		t.Fatalf("CHAT_COMPANY_ID=%q", got)
	}
	if got := os.Getenv("CHAT_BASE_URL"); got != "http://localhost:9000" {
		t.Fatalf("CHAT_BASE_URL=%q, quotes not stripped", got)
	}
	if got := os.Getenv("CHAT_AGENT_ID"); got != "agent_test" {
		t.Fatalf("CHAT_AGENT_ID=%q, export prefix not handled", got)
	}
	if got := os.Getenv("EXISTING"); got != "already_set" {
		t.Fatalf("EXISTING=%q, file overwrote process env", got)
	}
}
