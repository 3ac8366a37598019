// Package config loads the cruiseqc CLI configuration.
//
// Values are layered from built-in defaults, a cruiseqc.yaml project file,
// CRUISEQC_ environment variables (a .env file in the project is honored) and
// explicitly set command-line flags, each overriding the previous layer.
package config

import (
	"time"

	"github.com/leapstack-labs/cruiseqc/internal/combine"
	"github.com/leapstack-labs/cruiseqc/internal/loader"
	"github.com/leapstack-labs/cruiseqc/internal/logging"
	"github.com/leapstack-labs/cruiseqc/internal/session"
)

// Config holds all CLI configuration options.
type Config struct {
	ProjectDir   string             `koanf:"project_dir"`
	StatePath    string             `koanf:"state_path"`
	OutputFormat string             `koanf:"output"`
	Verbose      bool               `koanf:"verbose"`
	Log          logging.Config     `koanf:"log"`
	Loader       loader.Config      `koanf:"loader"`
	Computed     ComputedConfig     `koanf:"computed"`
	External     ExternalConfig     `koanf:"external"`
	Combine      combine.Thresholds `koanf:"combine"`
}

// ComputedConfig locates the computed-parameter catalogue.
type ComputedConfig struct {
	DefinitionsFile  string `koanf:"definitions_file"`
	DefaultPrecision int    `koanf:"default_precision"`
}

// ExternalConfig configures the external numeric functions.
type ExternalConfig struct {
	// OctavePath is the octave binary. Empty disables the octave provider.
	OctavePath    string        `koanf:"octave_path"`
	OctaveScripts string        `koanf:"octave_scripts"`
	FunctionsDir  string        `koanf:"functions_dir"`
	Timeout       time.Duration `koanf:"timeout"`
}

// Default configuration values.
const (
	ConfigFileName    = "cruiseqc.yaml"
	ConfigFileNameAlt = "cruiseqc.yml"
	EnvPrefix         = "CRUISEQC_"
	DefaultOutput     = "auto" // TTY=text, otherwise markdown
	DefaultLogLevel   = "info"
	DefaultLogFormat  = logging.FormatText
	DefaultPrecision  = 4
	DefaultTimeout    = 30 * time.Second
)

// SessionConfig maps the CLI configuration onto a session configuration.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		ProjectDir:       c.ProjectDir,
		StatePath:        c.StatePath,
		Loader:           c.Loader,
		DefinitionsFile:  c.Computed.DefinitionsFile,
		DefaultPrecision: c.Computed.DefaultPrecision,
		OctavePath:       c.External.OctavePath,
		OctaveScripts:    c.External.OctaveScripts,
		FunctionsDir:     c.External.FunctionsDir,
		ExternalTimeout:  c.External.Timeout,
		Combine:          c.Combine,
	}
}
