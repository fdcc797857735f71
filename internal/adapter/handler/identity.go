package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rl1809/stockledger/internal/core/domain"
)

// Identity headers set by the upstream auth proxy.
const (
	headerUserID   = "X-User-ID"
	headerUserName = "X-User-Name"
	headerUserRole = "X-User-Role"
)

type actorKey struct{}

func withActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) domain.Actor {
	actor, _ := ctx.Value(actorKey{}).(domain.Actor)
	return actor
}

// parseActor builds an actor from raw identity values. The id must be a
// positive integer; an unknown role is treated as a regular user.
func parseActor(id, name, role string) (domain.Actor, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n < 1 {
		return domain.Actor{}, false
	}

	actor := domain.Actor{ID: n, Username: strings.TrimSpace(name), Role: domain.RoleUser}
	if domain.Role(strings.ToLower(strings.TrimSpace(role))) == domain.RoleManager {
		actor.Role = domain.RoleManager
	}
	if actor.Username == "" {
		actor.Username = "user-" + strconv.FormatInt(n, 10)
	}
	return actor, true
}

func identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := parseActor(r.Header.Get(headerUserID), r.Header.Get(headerUserName), r.Header.Get(headerUserRole))
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

func requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).IsManager() {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "manager role required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
