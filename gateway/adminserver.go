package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// statusResponse is the JSON body of GET /status, a read-only operational
// surface (not the query front end, which is out of scope) reporting the
// current snapshot's age and candidate counts (spec.md section 2,
// "Published readers + glue"), grounded on the teacher's admin_httpd.go
// read-only handler shape.
type statusResponse struct {
	Ready              bool      `json:"ready"`
	SnapshotAge        string    `json:"snapshot_age,omitempty"`
	Deployments        int       `json:"deployments"`
	Indexers           int       `json:"indexers"`
	SelectionFactors   int       `json:"selection_factors"`
	IndexingErrors     int       `json:"indexing_errors"`
	LastSnapshotTakenAt time.Time `json:"last_snapshot_taken_at,omitempty"`
}

// NewAdminRouter builds the gateway's operational HTTP surface: a health
// check and a JSON status endpoint over the current snapshot. This is the
// "published readers" component of spec.md section 2, not a query API.
func NewAdminRouter(g *Gateway) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", g.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", g.handleStatus).Methods(http.MethodGet)
	return r
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if g.Snapshot() == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := g.Snapshot()
	resp := statusResponse{
		Ready:            snapshot != nil,
		SelectionFactors: g.SelectionFactorsCount(),
	}
	if snapshot != nil {
		resp.SnapshotAge = time.Since(snapshot.TakenAt).String()
		resp.LastSnapshotTakenAt = snapshot.TakenAt
		resp.Deployments = len(snapshot.Deployments)
		resp.Indexers = len(snapshot.Indexers)
		resp.IndexingErrors = len(snapshot.IndexingErrors)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
