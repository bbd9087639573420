package middleware

import (
	"net/http"
	"time"

	"github.com/nirasova/ether-gateway/common/httputil"
)

// statusRecorder captures the status code written by the inner handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// AccessLog invokes log once per completed request with the observed
// status, duration and client ip. The log callback keeps this package
// free of a dependency on the logging wrapper, which imports this package
// for request ids.
func AccessLog(log func(r *http.Request, status int, duration time.Duration, ip string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			log(r, rec.status, time.Since(start), httputil.GetClientIP(r))
		})
	}
}
