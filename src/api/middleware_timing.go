package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// slowRequestThreshold is the latency above which a request is logged at
// warn level. The admin surface is all cheap in-memory reads, so anything
// slower than this usually means a wedged session actor or a /proc walk
// gone bad.
const slowRequestThreshold = 500 * time.Millisecond

// serverTimingWriter wraps gin.ResponseWriter so the Server-Timing header
// is set before the first status or body write, after which headers are
// immutable.
type serverTimingWriter struct {
	gin.ResponseWriter
	start   time.Time
	emitted bool
}

func (w *serverTimingWriter) emit() {
	if w.emitted {
		return
	}
	w.emitted = true
	ms := float64(time.Since(w.start).Microseconds()) / 1000.0
	w.Header().Set("Server-Timing", fmt.Sprintf("total;dur=%.2f", ms))
}

func (w *serverTimingWriter) WriteHeader(statusCode int) {
	w.emit()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *serverTimingWriter) Write(data []byte) (int, error) {
	w.emit()
	return w.ResponseWriter.Write(data)
}

func (w *serverTimingWriter) WriteHeaderNow() {
	w.emit()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *serverTimingWriter) Flush() {
	w.emit()
	w.ResponseWriter.Flush()
}

// serverTimingMiddleware reports each request's processing time in a
// Server-Timing header (visible in browser DevTools) and warns about
// requests that exceed slowRequestThreshold. WebSocket upgrades hijack
// the connection and bypass the wrapped writer, so the terminal endpoint
// itself is unaffected; this covers the REST surface around it.
func serverTimingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Writer = &serverTimingWriter{ResponseWriter: c.Writer, start: start}

		c.Next()

		if elapsed := time.Since(start); elapsed > slowRequestThreshold && !c.IsWebsocket() {
			logrus.Warnf("slow request: %s %s took %s", c.Request.Method, c.Request.URL.Path, elapsed.Round(time.Millisecond))
		}
	}
}
