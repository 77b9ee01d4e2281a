package middleware

import (
	"context"
	"net/http"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
)

// Tenancy headers. Authentication happens upstream; these arrive trusted.
const (
	WorkspaceHeader = "X-Workspace-ID"
	ActorHeader     = "X-Actor-ID"
)

type actorKey struct{}

// Tenancy reads the workspace and acting user from request headers and puts
// a models.Actor in the request context. Requests without a valid workspace
// id are rejected.
func Tenancy(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspaceID, err := uuid.Parse(r.Header.Get(WorkspaceHeader))
		if err != nil {
			writeTenancyError(w, WorkspaceHeader+" header must be a valid UUID")
			return
		}

		actor := models.Actor{WorkspaceID: workspaceID}
		if raw := r.Header.Get(ActorHeader); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				writeTenancyError(w, ActorHeader+" header must be a valid UUID")
				return
			}
			actor.UserID = &userID
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor returns a copy of ctx carrying actor
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by Tenancy
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}

func writeTenancyError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"` + message + `"}}`))
}
