package res

import (
	"net/http"

	gojson "github.com/goccy/go-json"
)

// Json encodes data and writes it with statusCode.
func Json(w http.ResponseWriter, data any, statusCode int) {
	payload, err := gojson.Marshal(data)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	Raw(w, payload, statusCode)
}

// Raw writes an already encoded JSON payload.
func Raw(w http.ResponseWriter, payload []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(payload)
}
