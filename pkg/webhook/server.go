// Copyright 2025 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package webhook is the ingestion server for payment provider event
// notifications. Deliveries are authenticated, normalized, routed by
// event kind, and reconciled into the external user record store.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"
	"google.golang.org/api/option"

	"github.com/harterjay/payment-webhook-reconciler/pkg/clients"
	"github.com/harterjay/payment-webhook-reconciler/pkg/events"
	"github.com/harterjay/payment-webhook-reconciler/pkg/userstore"
	"github.com/harterjay/payment-webhook-reconciler/pkg/version"
)

// UserStore updates user records addressed by identity.
type UserStore interface {
	SetPaid(ctx context.Context, identity string, paid bool) error
}

// eventHandler settles one normalized event, returning the archive outcome
// label for the delivery.
type eventHandler func(ctx context.Context, env *events.Envelope) (string, error)

// Server provides the server implementation.
type Server struct {
	h         *renderer.Renderer
	projectID string

	webhookSecret      string
	signatureTolerance time.Duration

	reconciler     *Reconciler
	archive        clients.Messenger
	archiveTimeout time.Duration

	handlers map[string]eventHandler
}

// WebhookClientOptions encapsulate client config options as well as test
// overrides.
type WebhookClientOptions struct {
	ArchivePubSubClientOpts []option.ClientOption

	// StoreClientOverride is only used for testing.
	StoreClientOverride UserStore
}

// NewServer creates a new HTTP server implementation that will handle
// receiving webhook payloads.
func NewServer(ctx context.Context, h *renderer.Renderer, cfg *Config, wco *WebhookClientOptions) (*Server, error) {
	store := wco.StoreClientOverride
	if store == nil {
		sc, err := userstore.New(ctx, &userstore.Config{
			Endpoint:       cfg.StoreEndpoint,
			APIKey:         cfg.StoreAPIKey,
			Table:          cfg.StoreTable,
			IdentityColumn: cfg.StoreIdentityColumn,
			Timeout:        cfg.StoreTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create user store client: %w", err)
		}
		store = sc
	}

	var archive clients.Messenger
	if cfg.ArchiveTopicID != "" {
		projectID := cfg.ArchiveProjectID
		if projectID == "" {
			projectID = cfg.ProjectID
		}
		messenger, err := clients.NewPubSubMessenger(ctx, projectID, cfg.ArchiveTopicID, cfg.ArchiveTimeout, wco.ArchivePubSubClientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive messenger: %w", err)
		}
		archive = messenger
	}

	s := &Server{
		h:                  h,
		projectID:          cfg.ProjectID,
		webhookSecret:      cfg.WebhookSecret,
		signatureTolerance: cfg.SignatureTolerance,
		reconciler:         NewReconciler(store, cfg.StoreTimeout),
		archive:            archive,
		archiveTimeout:     cfg.ArchiveTimeout,
	}
	s.handlers = map[string]eventHandler{
		events.KindCheckoutSessionCompleted: s.handleCheckoutSessionCompleted,
	}

	return s, nil
}

// Routes creates a ServeMux of all of the routes that this Router
// supports.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("/webhook", s.handleWebhook())
	mux.Handle("/version", s.handleVersion())

	// Middleware
	root := logging.HTTPInterceptor(logger, s.projectID)(mux)

	return root
}

// handleVersion is a simple http.HandlerFunc that responds with version
// information for the server.
func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.h.RenderJSON(w, http.StatusOK, map[string]string{
			"version": version.HumanVersion,
		})
	})
}

// Shutdown handles the graceful shutdown of the webhook server.
func (s *Server) Shutdown() error {
	if s.archive != nil {
		if err := s.archive.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown archive messenger: %w", err)
		}
	}
	return nil
}
