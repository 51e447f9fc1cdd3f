package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultGameConf(t *testing.T) {
	c := DefaultGameConf()

	if c.MudName != "Emberline" {
		t.Errorf("MudName = %q", c.MudName)
	}
	if c.Port != 6250 {
		t.Errorf("Port = %d", c.Port)
	}
	if c.TLSPort != 6251 {
		t.Errorf("TLSPort should default to port+1, got %d", c.TLSPort)
	}
	if c.ObjectBase != "world.objects" || c.ScriptBase != "world.scripts" || c.StateBase != "world.states" {
		t.Errorf("typeclass bases = %q %q %q", c.ObjectBase, c.ScriptBase, c.StateBase)
	}
	if c.DefaultState != "world.states.example" {
		t.Errorf("DefaultState = %q", c.DefaultState)
	}
	if c.GodDBRef != 1 {
		t.Errorf("GodDBRef = %d", c.GodDBRef)
	}
	if !c.CleartextEnabled() {
		t.Error("cleartext should default to enabled")
	}
}

func TestLoadGameConf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	data := `
mud_name: TestMush
port: 7000
cleartext: false
tls: true
tls_cert: /etc/certs/game.pem
tls_key: /etc/certs/game.key
comsys_enabled: true
default_state: world.states.combat
metrics_enabled: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadGameConf(path)
	if err != nil {
		t.Fatalf("LoadGameConf: %v", err)
	}
	if c.MudName != "TestMush" || c.Port != 7000 {
		t.Errorf("loaded values: %q %d", c.MudName, c.Port)
	}
	if c.CleartextEnabled() {
		t.Error("explicit cleartext: false should disable the plaintext listener")
	}
	if !c.TLS || c.TLSPort != 7001 {
		t.Errorf("TLS: %v port %d", c.TLS, c.TLSPort)
	}
	if c.DefaultState != "world.states.combat" {
		t.Errorf("DefaultState override: %q", c.DefaultState)
	}
	// Unset fields still get their defaults.
	if c.StateBase != "world.states" {
		t.Errorf("StateBase default: %q", c.StateBase)
	}
	if c.MetricsPort != 9150 {
		t.Errorf("MetricsPort default: %d", c.MetricsPort)
	}
}

func TestLoadGameConfErrors(t *testing.T) {
	if _, err := LoadGameConf(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGameConf(path); err == nil {
		t.Error("malformed yaml should fail")
	}
}
