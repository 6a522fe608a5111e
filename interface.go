// Package keeper issues and verifies access and refresh tokens and keeps a
// bounded set of live refresh sessions per principal.
package keeper

import (
	"context"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/service"
)

// Client represents the public interface for interacting with the session service
type Client interface {
	// Login verifies the password and returns a new access and refresh token pair
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)

	// Refresh returns a new access token for a live refresh session
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)

	// Logout closes the refresh session
	Logout(ctx context.Context, refreshToken string) error

	// VerifyAccess validates a bearer access token
	VerifyAccess(ctx context.Context, accessToken string) (*core.TokenClaims, error)
}

var _ Client = (*service.AuthService)(nil)
