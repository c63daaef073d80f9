package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/ap-automation/internal/core/domain"
	"github.com/kirillkom/ap-automation/internal/core/ports"
)

const (
	DemoTokenPrefix   = "mock-token-"
	demoFallbackLogin = "admin"
)

// DemoAuthenticator resolves "mock-token-<username>" bearer tokens against the user
// directory. With fallback enabled, missing or unknown tokens act as the admin user.
type DemoAuthenticator struct {
	users    ports.UserDirectory
	fallback bool
}

func NewDemoAuthenticator(users ports.UserDirectory, fallback bool) *DemoAuthenticator {
	return &DemoAuthenticator{users: users, fallback: fallback}
}

func (a *DemoAuthenticator) Authenticate(ctx context.Context, bearerToken string) (*domain.User, error) {
	username, ok := strings.CutPrefix(strings.TrimSpace(bearerToken), DemoTokenPrefix)
	if !ok || username == "" {
		return a.fallbackUser(ctx, errors.New("missing or malformed bearer token"))
	}

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if domain.IsKind(err, domain.ErrUserNotFound) {
			return a.fallbackUser(ctx, fmt.Errorf("unknown user %q", username))
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !user.IsActive {
		return nil, domain.WrapError(domain.ErrUnauthorized, "authenticate", fmt.Errorf("user %q is inactive", username))
	}
	return user, nil
}

func (a *DemoAuthenticator) fallbackUser(ctx context.Context, cause error) (*domain.User, error) {
	if !a.fallback {
		return nil, domain.WrapError(domain.ErrUnauthorized, "authenticate", cause)
	}
	user, err := a.users.GetByUsername(ctx, demoFallbackLogin)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnauthorized, "authenticate", fmt.Errorf("fallback user: %w", err))
	}
	return user, nil
}
