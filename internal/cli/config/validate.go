package config

import (
	"fmt"
	"os"
	"slices"
)

// OutputModes lists the accepted values of the output setting.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return fmt.Errorf("project_dir is required")
	}
	if !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("invalid output format %q (want one of %v)", c.OutputFormat, OutputModes)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("invalid log configuration: %w", err)
	}
	if c.Computed.DefaultPrecision < 0 {
		return fmt.Errorf("computed.default_precision must not be negative, got %d", c.Computed.DefaultPrecision)
	}
	if c.External.Timeout < 0 {
		return fmt.Errorf("external.timeout must not be negative, got %s", c.External.Timeout)
	}
	if err := c.Combine.Validate(); err != nil {
		return fmt.Errorf("invalid combine thresholds: %w", err)
	}
	return nil
}

// ValidateProject checks that the project directory exists.
func (c *Config) ValidateProject() error {
	info, err := os.Stat(c.ProjectDir)
	if os.IsNotExist(err) {
		return fmt.Errorf("project directory does not exist: %s\nHint: run `cruiseqc load <file>` or use --project-dir to specify a different path", c.ProjectDir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("project path is not a directory: %s", c.ProjectDir)
	}
	return nil
}
