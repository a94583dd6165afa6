package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleFeatureChart renders a line chart of one feature over time for
// every pot in a run. This is a debugging-only endpoint (no auth).
// Query params:
//   - run_id (optional; defaults to the in-flight run)
//   - feature (optional; default "area")
func (ws *WebServer) handleFeatureChart(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "feature store not configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" && ws.driver != nil {
		runID = ws.driver.RunID
	}
	if runID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "run_id required")
		return
	}
	feature := r.URL.Query().Get("feature")
	if feature == "" {
		feature = "area"
	}

	pots, err := ws.db.Pots(runID)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list pots: %v", err))
		return
	}
	if len(pots) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no feature rows for run")
		return
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pot Features", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Feature %q over time", feature),
			Subtitle: fmt.Sprintf("run=%s pots=%d", runID, len(pots))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	var xAxis []string
	for _, potID := range pots {
		series, err := ws.db.FeatureSeries(runID, potID, feature)
		if err != nil {
			ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load series: %v", err))
			return
		}
		data := make([]opts.LineData, 0, len(series))
		for _, row := range series {
			data = append(data, opts.LineData{Value: row.Value})
		}
		// All pots share the run's timepoints; take the axis from the
		// longest series seen.
		if len(series) > len(xAxis) {
			xAxis = xAxis[:0]
			for _, row := range series {
				xAxis = append(xAxis, row.Timestamp.Format("2006-01-02 15:04"))
			}
		}
		line.AddSeries(potID, data)
	}
	line.SetXAxis(xAxis)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
