// Package transport adapts HTTP requests onto the marketplace services. Handlers decode and
// validate the body, pull the caller from the request context and map service errors onto the
// JSON error envelope.
package transport

import (
	"net/http"
	"strconv"

	"fishmarket/internal/domain"
	"fishmarket/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// decodeBody fills req from the JSON body and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, req any) bool {
	if err := middleware.DecodeAndValidate(r, req); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return false
	}
	return true
}

// requireActor returns the authenticated caller or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "authentication required")
		return domain.Actor{}, false
	}
	return actor, true
}

// pathID parses a uuid route parameter or writes a 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// amount renders money with exactly two decimals. Values are kept unrounded until here.
func amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// round2 rounds half away from zero to cents for numeric JSON fields.
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
