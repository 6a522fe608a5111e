package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/layer-3/keeper/core"
	"github.com/layer-3/keeper/ports"
)

// CredentialVerifier checks passwords against the principal directory
type CredentialVerifier struct {
	directory ports.Directory
	hasher    ports.PasswordHasher
	now       core.Clock
	timeout   time.Duration
	log       zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier creates a verifier. timeout bounds each directory call; zero disables it.
func NewCredentialVerifier(directory ports.Directory, hasher ports.PasswordHasher, clock core.Clock, timeout time.Duration, log zerolog.Logger) *CredentialVerifier {
	if clock == nil {
		clock = time.Now
	}
	return &CredentialVerifier{
		directory: directory,
		hasher:    hasher,
		now:       clock,
		timeout:   timeout,
		log:       log,
	}
}

// Verify returns the principal when password matches. Unknown usernames and
// wrong passwords both yield core.ErrInvalidCredentials after a full hash comparison.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*core.Principal, error) {
	lookupCtx, cancel := withTimeout(ctx, v.timeout)
	principal, err := v.directory.FindByUsername(lookupCtx, username)
	cancel()

	if errors.Is(err, core.ErrPrincipalNotFound) {
		// Spend the same bcrypt work as a real comparison.
		_ = v.hasher.Compare(v.dummy(), []byte(password))
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, asStorage("find principal", err)
	}

	if err := v.hasher.Compare(principal.PasswordHash, []byte(password)); err != nil {
		return nil, core.ErrInvalidCredentials
	}

	return principal, nil
}

// RecordLogin updates the principal's last login time. Failures are logged and swallowed.
func (v *CredentialVerifier) RecordLogin(ctx context.Context, username string) {
	touchCtx, cancel := withTimeout(ctx, v.timeout)
	defer cancel()

	if err := v.directory.TouchLastLogin(touchCtx, username, v.now()); err != nil {
		v.log.Warn().Err(err).Str("username", username).Msg("failed to record last login")
	}
}

func (v *CredentialVerifier) dummy() string {
	v.dummyOnce.Do(func() {
		secret := make([]byte, 16)
		_, _ = rand.Read(secret)
		hash, err := v.hasher.Hash(secret)
		if err != nil {
			v.log.Error().Err(err).Msg("failed to prepare dummy password hash")
			return
		}
		v.dummyHash = hash
	})
	return v.dummyHash
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// asStorage makes sure err carries core.ErrStorage
func asStorage(op string, err error) error {
	if errors.Is(err, core.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
}
