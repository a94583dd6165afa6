// Package monitor serves run status and feature charts over HTTP while
// a pipeline run is in flight (or afterwards, against the feature
// store).
package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/traitcapture/timestream/internal/pipeline"
	"github.com/traitcapture/timestream/internal/store"
)

// WebServer exposes the monitoring endpoints.
type WebServer struct {
	mux *http.ServeMux

	db     *store.Store
	driver *pipeline.Driver

	// archive and total describe the run being observed.
	archive string
	total   int
}

// NewWebServer wires the monitoring endpoints. Both the store and the
// driver are optional; endpoints that need a missing dependency return
// 503.
func NewWebServer(db *store.Store, driver *pipeline.Driver, archivePath string, totalFrames int) *WebServer {
	ws := &WebServer{
		mux:     http.NewServeMux(),
		db:      db,
		driver:  driver,
		archive: archivePath,
		total:   totalFrames,
	}
	ws.mux.HandleFunc("/api/status", ws.handleStatus)
	ws.mux.HandleFunc("/api/runs", ws.handleRuns)
	ws.mux.HandleFunc("/charts/features", ws.handleFeatureChart)
	return ws
}

// ServeHTTP implements http.Handler.
func (ws *WebServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws.mux.ServeHTTP(w, r)
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	RunID       string    `json:"run_id,omitempty"`
	Archive     string    `json:"archive"`
	FramesDone  int64     `json:"frames_done"`
	TotalFrames int       `json:"total_frames"`
	Time        time.Time `json:"time"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Archive:     ws.archive,
		TotalFrames: ws.total,
		Time:        time.Now().UTC(),
	}
	if ws.driver != nil {
		resp.RunID = ws.driver.RunID
		resp.FramesDone = ws.driver.FramesDone.Load()
	}
	ws.writeJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "feature store not configured")
		return
	}
	runs, err := ws.db.Runs()
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ws.writeJSON(w, http.StatusOK, runs)
}
