package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dump-sanitiser/internal/defaults"
)

type LoggingCfg struct {
	Level        string `yaml:"level" json:"level"`                 // debug, info, warn, error
	File         string `yaml:"file" json:"file"`                   // Optional log file, written alongside stdout
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
}

// Config is the immutable input bundle for one sanitise run
type Config struct {
	DumpPath    string   `yaml:"dump_path" json:"dump_path"`
	ExtractTo   string   `yaml:"extract_to" json:"extract_to"`
	Extensions  []string `yaml:"extensions" json:"extensions"`     // Case-insensitive name suffixes; empty means defaults
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"` // Relative to DumpPath

	CommonJunkFiles []string             `yaml:"common_junk_files" json:"common_junk_files"`
	SystemJunkFiles []string             `yaml:"system_junk_files" json:"system_junk_files"`
	SystemDirs      []defaults.SystemDir `yaml:"system_dirs" json:"system_dirs"`

	RemoveCommonJunk  bool `yaml:"remove_common_junk" json:"remove_common_junk"`
	RemoveSystemJunk  bool `yaml:"remove_system_junk" json:"remove_system_junk"`
	RemoveWindowsDirs bool `yaml:"remove_windows_dirs" json:"remove_windows_dirs"`
	RemoveEmptyDirs   bool `yaml:"remove_empty_dirs" json:"remove_empty_dirs"`

	MakeDest        bool       `yaml:"make_dest" json:"make_dest"` // Create ExtractTo before the run starts
	DryRun          bool       `yaml:"dry_run" json:"dry_run"`
	DatabasePath    string     `yaml:"database_path" json:"database_path"`       // SQLite action history; empty disables it
	MetricsTextfile string     `yaml:"metrics_textfile" json:"metrics_textfile"` // Prometheus textfile written after the run
	Logging         LoggingCfg `yaml:"logging" json:"logging"`
}

var (
	errNoDumpPath    = errors.New("dump_path is required")
	errNoExtractTo   = errors.New("extract_to is required")
	errSameRoots     = errors.New("dump_path and extract_to must differ")
	errAbsExclude    = errors.New("exclude_dirs entries must be relative to dump_path")
	errEscapeExclude = errors.New("exclude_dirs entries must stay inside dump_path")
)

// Default returns a configuration with every removal step enabled and the
// built-in tables filled in. Files and flags are layered on top of it.
func Default() *Config {
	return &Config{
		Extensions:        defaults.Clone(defaults.MediaExtensions),
		ExcludeDirs:       defaults.Clone(defaults.ExcludeDirsWindows),
		CommonJunkFiles:   defaults.Clone(defaults.CommonJunkFiles),
		SystemJunkFiles:   defaults.Clone(defaults.SystemJunkFiles),
		SystemDirs:        defaults.Clone(defaults.SystemDirs),
		RemoveCommonJunk:  true,
		RemoveSystemJunk:  true,
		RemoveWindowsDirs: true,
		RemoveEmptyDirs:   true,
		Logging: LoggingCfg{
			Level:        "info",
			RotationDays: 30,
		},
	}
}

// Load reads a YAML file over the defaults. It does not validate; callers
// apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return decode(f)
}

func decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate normalises paths and lists in place and reports every problem
// found at once.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.DumpPath) == "" {
		problems = append(problems, errNoDumpPath.Error())
	} else if p, err := cleanAbsolute(c.DumpPath); err != nil {
		problems = append(problems, fmt.Sprintf("dump_path: %v", err))
	} else {
		c.DumpPath = p
	}

	if strings.TrimSpace(c.ExtractTo) == "" {
		problems = append(problems, errNoExtractTo.Error())
	} else if p, err := cleanAbsolute(c.ExtractTo); err != nil {
		problems = append(problems, fmt.Sprintf("extract_to: %v", err))
	} else {
		c.ExtractTo = p
	}

	if c.DumpPath != "" && c.DumpPath == c.ExtractTo {
		problems = append(problems, errSameRoots.Error())
	}

	c.Extensions = compact(c.Extensions)
	if len(c.Extensions) == 0 {
		c.Extensions = defaults.Clone(defaults.MediaExtensions)
	}

	excludes := make([]string, 0, len(c.ExcludeDirs))
	for _, d := range compact(c.ExcludeDirs) {
		if filepath.IsAbs(d) {
			problems = append(problems, fmt.Sprintf("%v: %s", errAbsExclude, d))
			continue
		}
		cd := filepath.Clean(d)
		if cd == ".." || strings.HasPrefix(cd, ".."+string(os.PathSeparator)) {
			problems = append(problems, fmt.Sprintf("%v: %s", errEscapeExclude, d))
			continue
		}
		excludes = append(excludes, cd)
	}
	c.ExcludeDirs = excludes

	c.CommonJunkFiles = compact(c.CommonJunkFiles)
	c.SystemJunkFiles = compact(c.SystemJunkFiles)

	for _, sd := range c.SystemDirs {
		if sd.Name == "" || sd.Marker == "" {
			problems = append(problems, fmt.Sprintf("system_dirs entry needs both name and marker, got %+v", sd))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if !validLogLevels[c.Logging.Level] {
		problems = append(problems, fmt.Sprintf("logging.level must be one of: debug, info, warn, error, got: %s", c.Logging.Level))
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func cleanAbsolute(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// compact trims entries and drops blanks and duplicates, keeping order
func compact(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
