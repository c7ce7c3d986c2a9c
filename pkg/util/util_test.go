package util

import (
	"testing"
)

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "hit", "later"); got != "hit" {
		t.Fatalf("FirstNonEmpty = %q, want hit", got)
	}
	if got := FirstNonEmpty("", "   "); got != "" {
		t.Fatalf("FirstNonEmpty = %q, want empty", got)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("UTIL_TEST_INT", "7")
	if got := EnvInt("UTIL_TEST_INT", 3, 0); got != 7 {
		t.Fatalf("EnvInt = %d, want 7", got)
	}
	t.Setenv("UTIL_TEST_INT", "-5")
	if got := EnvInt("UTIL_TEST_INT", 3, 1); got != 1 {
		t.Fatalf("EnvInt clamp = %d, want 1", got)
	}
	t.Setenv("UTIL_TEST_INT", "not-a-number")
	if got := EnvInt("UTIL_TEST_INT", 3, 0); got != 3 {
		t.Fatalf("EnvInt invalid = %d, want 3", got)
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("UTIL_TEST_BOOL", "ON")
	if !EnvBool("UTIL_TEST_BOOL", false) {
		t.Fatal("EnvBool(ON) = false, want true")
	}
	t.Setenv("UTIL_TEST_BOOL", "junk")
	if EnvBool("UTIL_TEST_BOOL", false) {
		t.Fatal("EnvBool(junk) = true, want default false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	type cfg struct {
		Name    string `env:"UTIL_TEST_NAME" default:"fallback"`
		Limit   int    `env:"UTIL_TEST_LIMIT" default:"100" min:"1"`
		Enabled bool   `env:"UTIL_TEST_ENABLED" default:"true"`
		Skipped string
	}
	t.Setenv("UTIL_TEST_NAME", "loaded")
	t.Setenv("UTIL_TEST_LIMIT", "0")

	var c cfg
	LoadFromEnv(&c)

	if c.Name != "loaded" {
		t.Errorf("Name = %q, want loaded", c.Name)
	}
	if c.Limit != 1 {
		t.Errorf("Limit = %d, want clamped 1", c.Limit)
	}
	if !c.Enabled {
		t.Error("Enabled = false, want default true")
	}
	if c.Skipped != "" {
		t.Errorf("Skipped = %q, want untouched", c.Skipped)
	}
}
