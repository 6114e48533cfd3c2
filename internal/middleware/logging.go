package middleware

import (
	"net/http"
	"time"

	"github.com/2beens/gymtracker/pkg"

	log "github.com/sirupsen/logrus"
)

// LogRequest traces every request once it is served, with its status and duration.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			if !log.IsLevelEnabled(log.TraceLevel) {
				return
			}
			ip, _ := pkg.ClientIP(r)
			log.WithFields(log.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"ip":     ip,
				"ua":     r.Header.Get("User-Agent"),
				"status": rw.statusCode,
				"took":   time.Since(start).String(),
			}).Trace(" ====> request")
		})
	}
}
