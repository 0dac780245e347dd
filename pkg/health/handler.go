package health

import (
	"encoding/json"
	"net/http"
	"strings"
)

// LivenessHandler always answers OK while the process can serve HTTP.
// Dependencies are never consulted here; an unreachable store must not get the
// process restarted.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		write(w, r, http.StatusOK, &Response{Status: StatusHealthy})
	}
}

// ReadinessHandler runs checks on every request. An unhealthy run answers 503,
// a degraded one answers 200. Plain text bodies name the failing checks:
//
//	OK
//	DEGRADED database
//	UNAVAILABLE redis
func ReadinessHandler(checks Checks, opts ...Option) http.HandlerFunc {
	cfg := newConfig(opts...)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := run(r.Context(), checks, cfg)

		code := http.StatusOK
		if resp.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		write(w, r, code, resp)
	}
}

func write(w http.ResponseWriter, r *http.Request, code int, resp *Response) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(summary(resp)))
}

func summary(resp *Response) string {
	switch resp.Status {
	case StatusHealthy:
		return "OK"
	case StatusDegraded:
		return "DEGRADED " + strings.Join(resp.Failing, ",")
	default:
		return "UNAVAILABLE " + strings.Join(resp.Failing, ",")
	}
}

func wantsJSON(r *http.Request) bool {
	if r.URL.Query().Get("format") == "json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
