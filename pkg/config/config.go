package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Allowed values for validated options. Gitea rejects values outside
// these sets at startup, so hutch refuses to render them at all.
var (
	giteaLogLevels = []string{"Trace", "Debug", "Info", "Warn", "Error", "Critical", "Fatal", "None"}
	giteaProtocols = []string{"http", "https", "http+unix", "fcgi", "fcgi+unix"}
)

// Config is the fixed set of operator options. Every field has a
// documented default; an options file supplied with --config overrides
// individual fields.
type Config struct {
	// AppName is the Gitea application name. Default "Gitea".
	AppName string `yaml:"app-name"`

	// ListenAddress is the host:port Gitea serves HTTP on.
	// Default "0.0.0.0:3000".
	ListenAddress string `yaml:"listen-address"`

	// RootURL is the externally reachable base URL. Empty lets Gitea
	// derive it from the listen address.
	RootURL string `yaml:"root-url"`

	// Protocol is the Gitea server protocol. Default "http".
	Protocol string `yaml:"protocol"`

	// GiteaLogLevel is the log level rendered into app.ini.
	// Default "Info".
	GiteaLogLevel string `yaml:"gitea-log-level"`

	// InstallDir is where attached binaries are linked from.
	// Default "/usr/local/bin".
	InstallDir string `yaml:"install-dir"`

	// DataDir is Gitea's working directory. Default "/var/lib/gitea".
	DataDir string `yaml:"data-dir"`

	// ConfigDir holds the rendered app.ini. Default "/etc/gitea".
	ConfigDir string `yaml:"config-dir"`

	// RunnerName identifies this runner to the Gitea instance.
	// Default "hutch-runner".
	RunnerName string `yaml:"runner-name"`

	// RunnerLabels is the comma-separated label set the runner
	// advertises. Default "linux".
	RunnerLabels string `yaml:"runner-labels"`

	// RunnerDataDir is the runner's working directory.
	// Default "/var/lib/act_runner".
	RunnerDataDir string `yaml:"runner-data-dir"`

	// RunnerConfigDir holds the rendered runner config.yaml.
	// Default "/etc/act_runner".
	RunnerConfigDir string `yaml:"runner-config-dir"`

	// GiteaUnit and RunnerUnit are the systemd unit names.
	// Defaults "hutch-gitea" and "hutch-runner".
	GiteaUnit  string `yaml:"gitea-unit"`
	RunnerUnit string `yaml:"runner-unit"`

	// StateDir holds hutch's own unit state database.
	// Default "/var/lib/hutch".
	StateDir string `yaml:"state-dir"`

	// LogLevel is hutch's own log level. Default "info".
	LogLevel string `yaml:"log-level"`
}

// Default returns a Config populated with every documented default.
func Default() *Config {
	return &Config{
		AppName:         "Gitea",
		ListenAddress:   "0.0.0.0:3000",
		Protocol:        "http",
		GiteaLogLevel:   "Info",
		InstallDir:      "/usr/local/bin",
		DataDir:         "/var/lib/gitea",
		ConfigDir:       "/etc/gitea",
		RunnerName:      "hutch-runner",
		RunnerLabels:    "linux",
		RunnerDataDir:   "/var/lib/act_runner",
		RunnerConfigDir: "/etc/act_runner",
		GiteaUnit:       "hutch-gitea",
		RunnerUnit:      "hutch-runner",
		StateDir:        "/var/lib/hutch",
		LogLevel:        "info",
	}
}

// Load reads an options file and overlays it on the defaults. Unknown
// keys are rejected so a typo cannot silently fall back to a default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every constrained option against its allowed set.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return fmt.Errorf("listen-address %q is not host:port: %w", c.ListenAddress, err)
	}
	if !contains(giteaLogLevels, c.GiteaLogLevel) {
		return fmt.Errorf("gitea-log-level %q not in %v", c.GiteaLogLevel, giteaLogLevels)
	}
	if !contains(giteaProtocols, c.Protocol) {
		return fmt.Errorf("protocol %q not in %v", c.Protocol, giteaProtocols)
	}
	if c.RunnerLabels == "" {
		return fmt.Errorf("runner-labels must not be empty")
	}
	for _, label := range strings.Split(c.RunnerLabels, ",") {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("runner-labels %q contains an empty label", c.RunnerLabels)
		}
	}
	for name, dir := range map[string]string{
		"install-dir":       c.InstallDir,
		"data-dir":          c.DataDir,
		"config-dir":        c.ConfigDir,
		"runner-data-dir":   c.RunnerDataDir,
		"runner-config-dir": c.RunnerConfigDir,
		"state-dir":         c.StateDir,
	} {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s %q must be an absolute path", name, dir)
		}
	}
	if c.GiteaUnit == "" || c.RunnerUnit == "" {
		return fmt.Errorf("unit names must not be empty")
	}
	if c.GiteaUnit == c.RunnerUnit {
		return fmt.Errorf("gitea-unit and runner-unit must differ")
	}
	return nil
}

// EffectiveRootURL returns the externally reachable base URL, deriving
// one from the protocol and listen address when root-url is unset.
func (c *Config) EffectiveRootURL() string {
	if c.RootURL != "" {
		return c.RootURL
	}
	host, port, err := net.SplitHostPort(c.ListenAddress)
	if err != nil {
		return ""
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s/", c.Protocol, net.JoinHostPort(host, port))
}

// HTTPPort returns the port component of the listen address.
func (c *Config) HTTPPort() string {
	_, port, err := net.SplitHostPort(c.ListenAddress)
	if err != nil {
		return ""
	}
	return port
}

// GiteaConfigPath is the rendered app.ini location.
func (c *Config) GiteaConfigPath() string {
	return filepath.Join(c.ConfigDir, "app.ini")
}

// RunnerConfigPath is the rendered runner config location.
func (c *Config) RunnerConfigPath() string {
	return filepath.Join(c.RunnerConfigDir, "config.yaml")
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
