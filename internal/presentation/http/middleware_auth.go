package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mallkit/storefront/internal/domain/audit"
)

type actorKey struct{}

var errNoToken = errors.New("missing bearer token")

// ActorFrom returns the authenticated actor stored by the auth middleware.
func ActorFrom(ctx context.Context) (audit.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(audit.Actor)
	return actor, ok
}

// Auth verifies the bearer token and stores the actor claims on the
// context. Token issuance lives in the accounts service; the core only
// verifies.
func Auth(secret string) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := actorFromRequest(r, keyFunc)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff gates the back-office routes.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, errNoToken)
			return
		}
		if !actor.IsStaff() {
			writeError(w, http.StatusForbidden, errors.New("staff access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type actorClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func actorFromRequest(r *http.Request, keyFunc jwt.Keyfunc) (audit.Actor, error) {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return audit.Actor{}, errNoToken
	}

	var claims actorClaims
	token, err := jwt.ParseWithClaims(raw, &claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return audit.Actor{}, errors.New("invalid token")
	}

	id, err := claims.GetSubject()
	if err != nil || id == "" {
		return audit.Actor{}, errors.New("token subject missing")
	}
	actorID, err := parseID(id)
	if err != nil {
		return audit.Actor{}, errors.New("token subject malformed")
	}

	role := claims.Role
	if role != audit.RoleStaff {
		role = audit.RoleBuyer
	}
	return audit.Actor{ID: actorID, Name: claims.Name, Role: role}, nil
}
