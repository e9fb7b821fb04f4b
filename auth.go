package regsync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Authenticator establishes a session with a registry.
type Authenticator interface {
	Login(ctx context.Context, endpoint, username, password string) error
}

// Login validates cfg and authenticates against the destination registry
// once. Every failure is fatal for the job.
func Login(ctx context.Context, auth Authenticator, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"endpoint": cfg.Endpoint,
		"username": cfg.Username,
	}).Info("Logging in to destination registry")

	if err := auth.Login(ctx, cfg.Endpoint, cfg.Username, cfg.Password); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAuthentication, cfg.Endpoint, err)
	}
	return nil
}
