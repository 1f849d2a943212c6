package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	ws "github.com/coder/websocket"
)

// Handler upgrades GET /ws requests and runs them as hub clients.
// "?entities=task,points" limits what the client receives.
func Handler(hub *Hub, logger *slog.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := &ws.AcceptOptions{OriginPatterns: originPatterns}
		if len(originPatterns) == 0 {
			opts.InsecureSkipVerify = true
		}

		conn, err := ws.Accept(w, r, opts)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, parseEntities(r.URL.Query().Get("entities"))...)

		hello, _ := json.Marshal(NewMessage("connection", "ready", 0, map[string]any{
			"clients": hub.ClientCount() + 1,
		}))
		client.send <- hello

		client.Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}

func parseEntities(q string) []string {
	var out []string
	for _, e := range strings.Split(q, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
