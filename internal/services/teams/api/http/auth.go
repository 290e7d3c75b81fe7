package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/engine"
)

type contextKey int

const actorContextKey contextKey = iota

// Claims is the bearer token payload. The subject is the user id and Role
// carries the authorization level.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errUnauthenticated = apperrors.New(apperrors.CodePermission, "missing or invalid bearer token")

// authenticate resolves the Actor from the Authorization header and stores it
// on the request context. HS256 only.
func (h *Handler) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			h.writeError(w, r, errUnauthenticated)
			return
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
			h.writeError(w, r, errUnauthenticated)
			return
		}

		actor := engine.Actor{ID: claims.Subject, Role: engine.RoleParticipant}
		if claims.Role == string(engine.RoleAdmin) {
			actor.Role = engine.RoleAdmin
		}

		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next(w, r.WithContext(ctx))
	}
}

func actorFrom(r *http.Request) engine.Actor {
	actor, _ := r.Context().Value(actorContextKey).(engine.Actor)
	return actor
}

// SignToken issues an HS256 token for a user, used by tests and tooling.
func SignToken(secret []byte, userID string, role engine.Role) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
	})
	return token.SignedString(secret)
}
