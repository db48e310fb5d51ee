package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"payengine/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, role, permission string) (bool, error)
}

// RequirePermission admits a request only when the caller's role holds
// permission. Denials are logged at info so rejected void or compute
// attempts can be traced back to an actor.
func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := GetRequestID(ctx)
			user, ok := GetUser(ctx)
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}

			allowed, err := store.HasPermission(ctx, user.Role, permission)
			switch {
			case err != nil:
				slog.Error("permission lookup failed", "role", user.Role, "permission", permission, "err", err)
				api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
			case !allowed:
				slog.Info("permission denied",
					"user_id", user.UserID,
					"employer_id", user.EmployerID,
					"role", user.Role,
					"permission", permission,
					"request_id", reqID,
				)
				api.Fail(w, http.StatusForbidden, "forbidden", "role "+user.Role+" lacks "+permission, reqID)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
