package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GameConf holds game-level configuration parameters loaded from YAML.
type GameConf struct {
	// --- Identity ---
	MudName string `yaml:"mud_name"`
	Port    int    `yaml:"port"`

	// --- Idle/timeout ---
	IdleTimeout int `yaml:"idle_timeout"` // seconds; 0 = default

	// --- Registry base paths ---
	// Typeclass paths not rooted at core. or world. are qualified with
	// these before lookup.
	ObjectBase   string `yaml:"object_base"`   // base for @debug/obj paths
	ScriptBase   string `yaml:"script_base"`   // base for @debug/script paths
	StateBase    string `yaml:"state_base"`    // base for @teststate paths
	DefaultState string `yaml:"default_state"` // state pushed by bare @teststate

	// --- Comsys ---
	ComsysEnabled bool   `yaml:"comsys_enabled"`
	PublicChannel string `yaml:"public_channel"`
	PublicCalias  string `yaml:"public_calias"`

	// --- Security ---
	GodDBRef int `yaml:"god_dbref"` // the God player dbref (default 1)

	// --- TLS ---
	Cleartext *bool  `yaml:"cleartext"` // nil = default true; explicitly false disables plaintext
	TLS       bool   `yaml:"tls"`
	TLSPort   int    `yaml:"tls_port"`
	TLSCert   string `yaml:"tls_cert"`
	TLSKey    string `yaml:"tls_key"`

	// --- WebSocket ---
	WebEnabled bool   `yaml:"web_enabled"`
	WebPort    int    `yaml:"web_port"`
	WebHost    string `yaml:"web_host"`

	// --- Message log ---
	SQLDatabase string `yaml:"sql_database"` // path to SQLite file; "" = in filesystem next to bolt
	SQLTimeout  int    `yaml:"sql_timeout"`  // query timeout in seconds (default 5)

	// --- Text files ---
	TextDir string `yaml:"text_dir"`

	// --- Metrics ---
	MetricsEnabled bool `yaml:"metrics_enabled"`
	MetricsPort    int  `yaml:"metrics_port"`
}

// DefaultGameConf returns a GameConf with all defaults applied.
func DefaultGameConf() *GameConf {
	conf := &GameConf{}
	conf.applyDefaults()
	return conf
}

// applyDefaults fills zero-valued fields with their defaults.
func (c *GameConf) applyDefaults() {
	if c.MudName == "" {
		c.MudName = "Emberline"
	}
	if c.Port == 0 {
		c.Port = 6250
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 3600
	}
	if c.ObjectBase == "" {
		c.ObjectBase = "world.objects"
	}
	if c.ScriptBase == "" {
		c.ScriptBase = "world.scripts"
	}
	if c.StateBase == "" {
		c.StateBase = "world.states"
	}
	if c.DefaultState == "" {
		c.DefaultState = "world.states.example"
	}
	if c.PublicChannel == "" {
		c.PublicChannel = "Public"
	}
	if c.PublicCalias == "" {
		c.PublicCalias = "pub"
	}
	if c.GodDBRef == 0 {
		c.GodDBRef = 1
	}
	if c.TLSPort == 0 {
		c.TLSPort = c.Port + 1
	}
	if c.WebPort == 0 {
		c.WebPort = 8443
	}
	if c.SQLTimeout == 0 {
		c.SQLTimeout = 5
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9150
	}
}

// LoadGameConf reads a YAML config file and applies defaults.
func LoadGameConf(path string) (*GameConf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	conf := &GameConf{}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	conf.applyDefaults()
	return conf, nil
}

// CleartextEnabled reports whether the plaintext listener should run.
func (c *GameConf) CleartextEnabled() bool {
	return c.Cleartext == nil || *c.Cleartext
}
