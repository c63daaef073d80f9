package httpadapter

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/ap-automation/internal/core/domain"
)

type userContextKey struct{}

func userFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userContextKey{}).(*domain.User)
	return user
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authorize resolves the caller and, when roles are given, requires one of them.
func (rt *Router) authorize(next http.HandlerFunc, roles ...domain.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := rt.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, err)
			return
		}
		if len(roles) > 0 && !user.HasRole(roles...) {
			writeError(w, domain.WrapError(domain.ErrForbidden, "authorize",
				fmt.Errorf("role %q may not access this resource", user.Role)))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey{}, user)))
	}
}
