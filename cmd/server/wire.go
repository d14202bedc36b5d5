// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"redsocial_backend/internal/app"
	"redsocial_backend/internal/config"
	"redsocial_backend/internal/identity"
	"redsocial_backend/internal/jobs"
	"redsocial_backend/internal/oauth"
	"redsocial_backend/internal/profile"
	"redsocial_backend/internal/session"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		provideLogger,

		// Identity provider (Firebase Admin SDK + Identity Toolkit)
		identity.NewFirebaseProvider,
		wire.Bind(new(identity.Provider), new(*identity.FirebaseProvider)),

		// Profile store, selected by STORE_DRIVER
		provideProfileStore,
		profile.NewProvisioner,

		// OAuth bridge
		oauth.NewGitHubBridge,

		// Session state machine and its HTTP surface
		session.NewController,
		session.NewHandler,

		// Jobs
		jobs.NewGuestCleanupJob,

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}
