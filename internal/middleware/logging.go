package middleware

import (
	"context"
	"net/http"
	"time"

	"fishmarket/internal/domain"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// quietPaths are polled by health checks and scrapers; they log at debug level.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// callerSlot carries the actor resolved further down the chain back up to the request log line.
type callerSlot struct {
	actor domain.Actor
}

// LoggingMiddleware logs one line per completed request, tagged with the chi request id and,
// once authenticated, the caller.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			slot := &callerSlot{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), callerSlotKey, slot)))

			level := zapcore.InfoLevel
			switch {
			case quietPaths[r.URL.Path]:
				level = zapcore.DebugLevel
			case ww.Status() >= http.StatusInternalServerError:
				level = zapcore.ErrorLevel
			}
			ce := logger.Check(level, "Request completed")
			if ce == nil {
				return
			}

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			actor, ok := GetActor(r.Context())
			if !ok && !slot.actor.IsZero() {
				actor, ok = slot.actor, true
			}
			if ok {
				fields = append(fields, zap.String("user_id", actor.UserID.String()), zap.String("role", string(actor.Role)))
			}
			ce.Write(fields...)
		})
	}
}
