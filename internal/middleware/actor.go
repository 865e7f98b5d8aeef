package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type actorKey string

const ctxActorIDKey actorKey = "actor_id"

// Actor extracts the acting reviewer from the X-Actor-ID header set by the
// upstream identity gateway. Requests without the header proceed as
// anonymous; permission gates reject them where an actor is required.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Actor-ID")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, `{"error":"invalid X-Actor-ID header"}`, http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ctxActorIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the acting reviewer id, if any.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxActorIDKey).(uuid.UUID)
	return id, ok
}
