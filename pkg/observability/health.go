package observability

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

// ReadyCheck is one named readiness probe. Check returns nil when the
// subsystem can serve requests.
type ReadyCheck struct {
	Check func(ctx context.Context) error
	Name  string
}

// HealthStatus is the body written by the health handlers.
type HealthStatus struct {
	Failed map[string]string `json:"failed,omitempty"`
	Status string            `json:"status"`
}

// HealthHandler answers liveness probes with 200 {"status":"ok"}.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		writeHealth(rw, http.StatusOK, HealthStatus{Status: healthStatusOK})
	})
}

// ReadyHandler runs every check and answers 503 listing the failed ones,
// or 200 when all pass.
func ReadyHandler(checks ...ReadyCheck) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		failed := map[string]string{}

		for _, check := range checks {
			err := check.Check(req.Context())
			if err != nil {
				failed[check.Name] = err.Error()
			}
		}

		if len(failed) > 0 {
			writeHealth(rw, http.StatusServiceUnavailable, HealthStatus{Status: healthStatusUnavailable, Failed: failed})

			return
		}

		writeHealth(rw, http.StatusOK, HealthStatus{Status: healthStatusOK})
	})
}

func writeHealth(rw http.ResponseWriter, code int, status HealthStatus) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	// The status line is already out; a failed write has no one to report to.
	_ = json.NewEncoder(rw).Encode(status)
}
