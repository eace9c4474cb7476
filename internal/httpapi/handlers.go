package httpapi

import (
	"encoding/json"
	"net/http"

	"cardarena/internal/hub"
)

// Status reports registry counts. Diagnostic surface only, not part of the
// game protocol.
func Status(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan hub.StatusReply, 1)
		h.Inbox() <- hub.Status{Reply: reply}
		status := <-reply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Status  string `json:"status"`
			Rooms   int    `json:"rooms"`
			Players int    `json:"players"`
		}{Status: "ok", Rooms: status.Rooms, Players: status.Players})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
