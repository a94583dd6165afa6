package config

import (
	"errors"
	"testing"
	"time"

	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/fsutil"
)

func memFS(t *testing.T, path, content string) fsutil.FileSystem {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	if err := fs.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return fs
}

const validConfig = `{
	"general": {
		"input": "/data/in",
		"output": "/data/out",
		"interval_seconds": 7200,
		"start": "2026_03_01_09_00_00",
		"end": "2026_03_01_17_00_00",
		"start_hour": "09:00",
		"end_hour": "17:30",
		"store": "/data/features.db"
	},
	"pipeline": [
		{"name": "potlocate", "args": {"centers": [[100, 100]], "grow": 50}},
		{"name": "plantextract"},
		{"name": "featureextract"},
		{"name": "imagewrite", "args": {"overwrite": "skip"}}
	]
}`

func TestLoadValid(t *testing.T) {
	fs := memFS(t, "/run.json", validConfig)
	c, err := Load("/run.json", fs)
	if err != nil {
		t.Fatal(err)
	}
	if c.General.Input != "/data/in" || c.General.Output != "/data/out" {
		t.Errorf("general = %+v", c.General)
	}
	if len(c.Pipeline) != 4 || c.Pipeline[0].Name != "potlocate" {
		t.Errorf("pipeline = %+v", c.Pipeline)
	}

	w, err := c.Window()
	if err != nil {
		t.Fatal(err)
	}
	if w.Interval != 2*time.Hour {
		t.Errorf("Interval = %v, want 2h", w.Interval)
	}
	if w.Start.Hour() != 9 || w.End.Hour() != 17 {
		t.Errorf("window = %v..%v", w.Start, w.End)
	}
	if w.StartHour == nil || *w.StartHour != 9*time.Hour {
		t.Errorf("StartHour = %v", w.StartHour)
	}
	if w.EndHour == nil || *w.EndHour != 17*time.Hour+30*time.Minute {
		t.Errorf("EndHour = %v", w.EndHour)
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	fs := memFS(t, "/run.yaml", validConfig)
	_, err := Load("/run.yaml", fs)
	var cerr *errs.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConfigError", err)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	fs := memFS(t, "/run.json", "{not json")
	if _, err := Load("/run.json", fs); err == nil {
		t.Fatal("malformed JSON should be rejected")
	}
}

func TestValidateRequirements(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing input", Config{
			Pipeline: []StageConfig{{Name: "potlocate"}},
		}},
		{"empty pipeline", Config{
			General: General{Input: "/in"},
		}},
		{"unnamed stage", Config{
			General:  General{Input: "/in"},
			Pipeline: []StageConfig{{}},
		}},
		{"imagewrite without output", Config{
			General:  General{Input: "/in"},
			Pipeline: []StageConfig{{Name: "imagewrite"}},
		}},
		{"bad timestamp", Config{
			General:  General{Input: "/in", Start: "yesterday"},
			Pipeline: []StageConfig{{Name: "potlocate"}},
		}},
		{"bad hour", Config{
			General:  General{Input: "/in", StartHour: "25:00"},
			Pipeline: []StageConfig{{Name: "potlocate"}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestParseHour(t *testing.T) {
	d, err := parseHour("07:45")
	if err != nil {
		t.Fatal(err)
	}
	if d != 7*time.Hour+45*time.Minute {
		t.Errorf("parseHour = %v", d)
	}
	if _, err := parseHour("noon"); err == nil {
		t.Error("non-numeric hour should fail")
	}
}
