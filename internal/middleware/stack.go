package middleware

import (
	"log/slog"
	"net/http"

	"github.com/vatdesk/api/internal/config"
)

// Stack wraps the API mux with the server's middleware. Metrics reads the
// matched pattern, so it sits directly on the mux; RequestID is outermost so
// every response, including 429s and recovered panics, carries an ID.
func Stack(mux http.Handler, cfg *config.Config, logger *slog.Logger) http.Handler {
	h := Metrics(mux)
	h = SecurityHeaders(h)
	h = CORS(cfg.CORSOrigin)(h)
	h = RateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)(h)
	h = Recover(logger)(h)
	h = RequestLogger(logger)(h)
	return RequestID(h)
}
