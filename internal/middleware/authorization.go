package middleware

import (
	"net/http"

	"fishmarket/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(logger, domain.RoleAdmin)
}

// RequireRole is the single role guard for route groups. The caller must hold one of allowedRoles.
func RequireRole(logger *zap.Logger, allowedRoles ...domain.Role) func(http.Handler) http.Handler {
	names := make([]string, len(allowedRoles))
	for i, role := range allowedRoles {
		names[i] = string(role)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActor(r.Context())
			if !ok {
				logger.Warn("Role guard reached without an authenticated actor", zap.String("path", r.URL.Path))
				RespondWithError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			for _, allowed := range allowedRoles {
				if actor.Role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("User role not authorized",
				zap.String("user_id", actor.UserID.String()),
				zap.String("role", string(actor.Role)),
				zap.Strings("allowed_roles", names),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
