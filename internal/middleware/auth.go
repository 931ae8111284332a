package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fishmarket/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	actorKey      contextKey = "actor"
	emailKey      contextKey = "email"
	callerSlotKey contextKey = "caller_slot"
)

// accessTokenParam lets EventSource clients, which cannot set headers, authenticate a GET stream.
const accessTokenParam = "access_token"

// AuthMiddleware validates JWT tokens and places the caller's domain.Actor in the request context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				logger.Debug("Missing or malformed authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			actor, email, err := actorFromClaims(token.Claims)
			if err != nil {
				logger.Warn("Rejected token claims", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", actor.UserID.String()),
				zap.String("role", string(actor.Role)),
			)

			ctx := WithActor(r.Context(), actor)
			ctx = context.WithValue(ctx, emailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if r.Method == http.MethodGet {
			if token := r.URL.Query().Get(accessTokenParam); token != "" {
				return token, true
			}
		}
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func actorFromClaims(claims jwt.Claims) (domain.Actor, string, error) {
	mapClaims, ok := claims.(jwt.MapClaims)
	if !ok {
		return domain.Actor{}, "", errors.New("unexpected claims type")
	}
	rawID, ok := mapClaims["user_id"].(string)
	if !ok {
		return domain.Actor{}, "", errors.New("missing user_id claim")
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Actor{}, "", errors.New("malformed user_id claim")
	}
	rawRole, ok := mapClaims["role"].(string)
	if !ok {
		return domain.Actor{}, "", errors.New("missing role claim")
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return domain.Actor{}, "", err
	}
	email, _ := mapClaims["email"].(string)
	return domain.Actor{UserID: userID, Role: role}, email, nil
}

// WithActor stores the authenticated caller in ctx. An enclosing LoggingMiddleware also learns it.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	if slot, ok := ctx.Value(callerSlotKey).(*callerSlot); ok {
		slot.actor = actor
	}
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor extracts the authenticated caller from request context
func GetActor(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok && !actor.IsZero()
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	actor, ok := GetActor(ctx)
	if !ok {
		return "", false
	}
	return actor.UserID.String(), true
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (domain.Role, bool) {
	actor, ok := GetActor(ctx)
	return actor.Role, ok
}

func GetEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok
}
