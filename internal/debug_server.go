package internal

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"encoding/json"
	"net/http"

	"github.com/samber/lo"
)

type ConnectionRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	State    string `json:"state"`
}

// RegisterDebugRoutes exposes the relay stats and the live registry as JSON.
func RegisterDebugRoutes(mux *http.ServeMux, monitor *observability.RelayMonitor, registry contract.IRegistry) {
	mux.HandleFunc("GET /debug/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, monitor.GetLatest())
	})

	mux.HandleFunc("GET /debug/connections", func(w http.ResponseWriter, r *http.Request) {
		rows := lo.Map(registry.SnapshotAll(), func(c contract.Connection, _ int) ConnectionRow {
			return ConnectionRow{ID: c.ID().String(), Username: c.Username(), State: c.State().String()}
		})
		writeJSON(w, rows)
	})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
