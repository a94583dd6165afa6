// Package config loads and validates the JSON run configuration: the
// input/output archives, the traversal window, and the ordered pipeline
// component list with per-component arguments.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/fsutil"
)

// maxConfigSize caps how much configuration we are willing to parse.
const maxConfigSize = 1 << 20

// Config is the full run configuration.
type Config struct {
	General  General       `json:"general"`
	Pipeline []StageConfig `json:"pipeline"`
}

// General holds run-wide settings.
type General struct {
	// Input is the source archive root. Required.
	Input string `json:"input"`
	// Output is the destination archive root. Required when the
	// pipeline writes images.
	Output string `json:"output"`

	// IntervalSeconds overrides the archive's sampling interval.
	IntervalSeconds float64 `json:"interval_seconds,omitempty"`
	// Start and End clamp the traversal window, formatted as
	// YYYY_MM_DD_HH_MM_SS.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	// StartHour and EndHour restrict traversal to a daily time-of-day
	// band, formatted as HH:MM.
	StartHour string `json:"start_hour,omitempty"`
	EndHour   string `json:"end_hour,omitempty"`
	// Exclude lists formatted YYYY_MM_DD_HH_MM_SS timestamps to skip
	// during traversal.
	Exclude []string `json:"exclude,omitempty"`

	// Store is the optional sqlite feature database path.
	Store string `json:"store,omitempty"`
}

// StageConfig names one pipeline component and its arguments.
type StageConfig struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Load reads and validates the configuration at path.
func Load(path string, fs fsutil.FileSystem) (*Config, error) {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	path = filepath.Clean(path)
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		return nil, errs.Configf("config", "%s: configuration must be a .json file", path)
	}
	raw, err := fs.ReadFile(path)
	if err != nil {
		return nil, errs.Configf("config", "%s: %v", path, err)
	}
	if len(raw) > maxConfigSize {
		return nil, errs.Configf("config", "%s: file exceeds %d bytes", path, maxConfigSize)
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, errs.Configf("config", "%s: %v", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the configuration for structural problems before any
// archive is touched.
func (c *Config) Validate() error {
	if c.General.Input == "" {
		return errs.Configf("config", "general.input is required")
	}
	if len(c.Pipeline) == 0 {
		return errs.Configf("config", "pipeline must name at least one component")
	}
	for i, sc := range c.Pipeline {
		if sc.Name == "" {
			return errs.Configf("config", "pipeline[%d] has no name", i)
		}
		if sc.Name == "imagewrite" && c.General.Output == "" {
			return errs.Configf("config", "general.output is required when the pipeline writes images")
		}
	}
	if _, err := c.Window(); err != nil {
		return err
	}
	return nil
}

// Window translates the general settings into traversal window options.
func (c *Config) Window() (archive.WindowOptions, error) {
	var w archive.WindowOptions
	var err error
	if c.General.Start != "" {
		if w.Start, err = archive.ParseTimestamp(c.General.Start); err != nil {
			return w, err
		}
	}
	if c.General.End != "" {
		if w.End, err = archive.ParseTimestamp(c.General.End); err != nil {
			return w, err
		}
	}
	if c.General.IntervalSeconds > 0 {
		w.Interval = time.Duration(c.General.IntervalSeconds * float64(time.Second))
	}
	if c.General.StartHour != "" {
		d, err := parseHour(c.General.StartHour)
		if err != nil {
			return w, err
		}
		w.StartHour = &d
	}
	if c.General.EndHour != "" {
		d, err := parseHour(c.General.EndHour)
		if err != nil {
			return w, err
		}
		w.EndHour = &d
	}
	w.Exclude = c.General.Exclude
	return w, nil
}

// parseHour converts an HH:MM time of day into an offset from midnight.
func parseHour(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, errs.Configf("config", "invalid time of day %q, want HH:MM", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, errs.Configf("config", "time of day %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
