package stages

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/errs"
	"github.com/traitcapture/timestream/internal/pipeline"
	"github.com/traitcapture/timestream/internal/store"
)

var featureStoreSchema = pipeline.Schema{
	"csv": {Desc: "optional CSV file to append feature rows to, alongside the database"},
}

// featureStore persists every pot's computed features: into the run's
// sqlite store when one is wired into the context, and optionally
// appended to a CSV file.
type featureStore struct {
	name    string
	csvPath string

	wroteHeader bool
}

func newFeatureStore(name string, args map[string]interface{}) (pipeline.Stage, error) {
	a, err := pipeline.ApplyArgs(name, featureStoreSchema, args)
	if err != nil {
		return nil, err
	}
	st := &featureStore{name: name}
	if v := a["csv"]; v != nil {
		if st.csvPath, err = argString(name, "csv", v); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *featureStore) Name() string          { return s.name }
func (s *featureStore) Args() pipeline.Schema { return featureStoreSchema }
func (s *featureStore) Expects() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }
func (s *featureStore) Returns() []string     { return []string{"*archive.Frame", "*pot.Matrix"} }

func (s *featureStore) Run(ctx *pipeline.Context, in pipeline.Values) (pipeline.Values, error) {
	if rerr, ok := sentinel(in); ok {
		return passthrough(s, rerr), nil
	}
	f, err := wantFrame(s.name, in)
	if err != nil {
		return nil, err
	}

	runID := ""
	if v, ok := ctx.Get(pipeline.KeyRunID); ok {
		runID, _ = v.(string)
	}
	rows := s.collect(runID, f)

	if v, ok := ctx.Get(pipeline.KeyStore); ok {
		if db, ok := v.(*store.Store); ok && db != nil {
			if err := db.RecordFeatures(rows); err != nil {
				return nil, err
			}
		}
	}
	if s.csvPath != "" {
		if err := s.appendCSV(rows); err != nil {
			return nil, err
		}
	}
	return pipeline.Values{f, f.Pots}, nil
}

func (s *featureStore) collect(runID string, f *archive.Frame) []store.FeatureRow {
	var rows []store.FeatureRow
	for _, id := range f.Pots.IDs() {
		h, err := f.Pots.Pot(id)
		if err != nil {
			continue
		}
		for name, v := range h.Features() {
			rows = append(rows, store.FeatureRow{
				RunID:     runID,
				Timestamp: f.Timestamp,
				PotID:     id,
				Feature:   name,
				Value:     v,
			})
		}
	}
	return rows
}

func (s *featureStore) appendCSV(rows []store.FeatureRow) error {
	file, err := os.OpenFile(s.csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &errs.PersistError{Path: s.csvPath, Err: err}
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if !s.wroteHeader {
		if info, err := file.Stat(); err == nil && info.Size() == 0 {
			if err := w.Write([]string{"timestamp", "pot_id", "feature", "value"}); err != nil {
				return &errs.PersistError{Path: s.csvPath, Err: err}
			}
		}
		s.wroteHeader = true
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.PotID,
			r.Feature,
			strconv.FormatFloat(r.Value, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return &errs.PersistError{Path: s.csvPath, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &errs.PersistError{Path: s.csvPath, Err: fmt.Errorf("flush: %w", err)}
	}
	return nil
}
