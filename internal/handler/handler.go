package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

// Notifier receives change notifications. *websocket.Hub satisfies it.
type Notifier interface {
	Publish(entity, action string, id int64, extra map[string]any)
}

func publish(n Notifier, entity, action string, id int64, extra map[string]any) {
	if n != nil {
		n.Publish(entity, action, id, extra)
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// decodeOptional decodes a JSON body that may be absent.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
