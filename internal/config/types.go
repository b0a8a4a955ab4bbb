package config

// Config represents the complete runstage configuration.
type Config struct {
	Service Service `yaml:"service"`
	Staging Staging `yaml:"staging"`
	Manager Manager `yaml:"manager"`
	API     API     `yaml:"api,omitempty"`
}

// Service defines core service settings.
type Service struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Staging defines where job directories live and how staged files get
// their permissions fixed up.
type Staging struct {
	Root string `yaml:"root"`

	// FixupUmask and FixupMode are octal strings (e.g. "0077", "0666").
	// When FixupMode is empty no permission fixup runs.
	FixupUmask string `yaml:"fixup_umask,omitempty"`
	FixupMode  string `yaml:"fixup_mode,omitempty"`
	FixupGID   int    `yaml:"fixup_gid,omitempty"`
}

// Manager selects and configures the job execution backend.
type Manager struct {
	// Kind is one of: local, queued, cli, pbs.
	Kind string `yaml:"kind"`

	// Workers is the executor pool size for the queued backend.
	Workers int `yaml:"workers,omitempty"`

	// Database is the sqlite path for the queued backend.
	Database string `yaml:"database,omitempty"`

	// Scheduler holds the command templates for the cli backend.
	Scheduler *Scheduler `yaml:"scheduler,omitempty"`
}

// Scheduler defines external scheduler command templates for the cli
// backend. Submit sees {script} and {params}, Status and Kill see {id}.
type Scheduler struct {
	Submit    string            `yaml:"submit"`
	Status    string            `yaml:"status,omitempty"`
	Kill      string            `yaml:"kill,omitempty"`
	StatusMap map[string]string `yaml:"status_map,omitempty"`
}

// API defines HTTP API server settings.
type API struct {
	Enabled bool    `yaml:"enabled"`
	Listen  string  `yaml:"listen"`
	Auth    APIAuth `yaml:"auth"`
}

// APIAuth defines API authentication settings.
type APIAuth struct {
	// APIKey is the bearer token clients must present. Empty disables auth.
	APIKey string `yaml:"api_key"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: Service{
			Name:      "runstage",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Staging: Staging{
			Root: "./data/staging",
		},
		Manager: Manager{
			Kind:     "local",
			Workers:  2,
			Database: "./data/jobs.db",
		},
		API: API{
			Enabled: false,
			Listen:  "127.0.0.1:8913",
		},
	}
}
