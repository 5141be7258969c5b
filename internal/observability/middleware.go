package observability

import (
	"net/http"
	"time"

	"github.com/danmuck/crgctl/internal/reset"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SequencerSource reports the sequencer as seen by a request handler.
// Both *crg.System and *reset.Sequencer satisfy it.
type SequencerSource interface {
	Snapshot() reset.Snapshot
}

// RequestLogger logs one line per request with the sequencer state at the time
// the handler returned. Reads log at debug, control requests at info, and
// failures at warn or error.
func RequestLogger(logger zerolog.Logger, system string, seq SequencerSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case c.Request.Method != http.MethodGet:
			event = logger.Info()
		}

		event = event.
			Str("system", system).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP())
		if seq != nil {
			snap := seq.Snapshot()
			event = event.
				Str("state", snap.State.String()).
				Bool("primary_reset", snap.PrimaryReset).
				Uint32("countdown1", snap.Countdown1).
				Uint32("countdown2", snap.Countdown2)
		}
		event.Msg("status request")
	}
}

// RequestMetricsMiddleware labels samples with the route template and the
// sequencer state the request was answered in. Scrapes of /metrics are not
// counted.
func RequestMetricsMiddleware(system string, seq SequencerSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := routePath(c)
		if path == "/metrics" {
			return
		}
		state := ""
		if seq != nil {
			state = seq.Snapshot().State.String()
		}
		RecordHTTPRequest(system, c.Request.Method, path, state, c.Writer.Status(), time.Since(start))
	}
}

func routePath(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return path
	}
	return c.Request.URL.Path
}
