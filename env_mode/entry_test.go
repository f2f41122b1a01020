package env_mode

import (
	"os"
	"testing"
)

func TestParseEnv(t *testing.T) {
	tests := map[string]ENV_MODE{
		"":            DevMode,
		"dev":         DevMode,
		" Production": ProMode,
		"prod":        ProMode,
		"pro":         ProMode,
		"TESTING":     TestMode,
		"staging":     DevMode,
	}
	for in, want := range tests {
		if got := ParseEnv(in); got != want {
			t.Errorf("ParseEnv(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestSetModeUpdatesCachedMode(t *testing.T) {
	prev := Mode()
	t.Cleanup(func() { SetMode(prev) })

	SetMode(ProMode)
	if Mode() != ProMode {
		t.Fatalf("Mode() = %s after SetMode(ProMode)", Mode())
	}
	if os.Getenv(ENV_MODE_KEY) != string(ProMode) {
		t.Fatalf("%s not exported", ENV_MODE_KEY)
	}
	if IsDev() {
		t.Fatal("IsDev() should be false in production")
	}

	SetMode(TestMode)
	if Mode() != TestMode {
		t.Fatalf("Mode() = %s after SetMode(TestMode)", Mode())
	}
}

func TestAliases(t *testing.T) {
	if got := Aliases(ProMode); len(got) != 3 || got[0] != "production" {
		t.Fatalf("Aliases(ProMode) = %v", got)
	}
	if got := Aliases(TestMode); len(got) != 1 || got[0] != "test" {
		t.Fatalf("Aliases(TestMode) = %v", got)
	}
	if got := Aliases(DevMode); got[0] != "development" {
		t.Fatalf("Aliases(DevMode) = %v", got)
	}
}
