package http

import (
	"encoding/json"
	"net/http"
)

// Handler возвращает HTTP handler для health check endpoint.
// Возвращает 200 OK с JSON телом {"status":"ok","service":...} если readiness
// функция не указана или возвращает true, иначе 503 Service Unavailable.
func Handler(service string, readiness func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if readiness != nil && !readiness() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "service": service})
			return
		}

		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": service})
	}
}
