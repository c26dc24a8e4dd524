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

package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abcxyz/pkg/logging"

	"github.com/harterjay/payment-webhook-reconciler/pkg/events"
	"github.com/harterjay/payment-webhook-reconciler/pkg/signature"
)

const (
	// mb is used for conversion to megabytes.
	mb = 1000000

	// maxPayloadBytes bounds the request body read. Provider events are a
	// few kilobytes; anything near this limit is not a webhook.
	maxPayloadBytes = 1 * mb
)

// Archive outcome labels for settled deliveries.
const (
	outcomeApplied   = "applied"
	outcomeSkipped   = "skipped"
	outcomeUnhandled = "unhandled"
	outcomeFailed    = "failed"
)

// handleWebhook handles the logic for receiving provider webhooks and
// reconciling them into the record store.
func (s *Server) handleWebhook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		ctx := r.Context()

		// The method gate runs before any verification work.
		if r.Method != http.MethodPost {
			s.reject(ctx, w, http.StatusMethodNotAllowed, errMethodNotAllowed, fmt.Errorf("got method %s", r.Method))
			return
		}

		// Verification signs the exact wire bytes, so the body is read
		// raw and untouched before any parsing.
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			s.reject(ctx, w, http.StatusInternalServerError, errReadingPayload, err)
			return
		}

		if len(payload) == 0 {
			s.reject(ctx, w, http.StatusBadRequest, errNoPayload, nil)
			return
		}

		sigHeader := r.Header.Get(signature.Header)
		if err := signature.Validate(sigHeader, payload, s.webhookSecret, now, s.signatureTolerance); err != nil {
			s.reject(ctx, w, http.StatusBadRequest, errInvalidSignature, err)
			return
		}

		env, err := events.Normalize(payload)
		if err != nil {
			s.reject(ctx, w, http.StatusBadRequest, errMalformedEvent, err)
			return
		}

		outcome, err := s.route(ctx, env)
		s.archiveEvent(ctx, now, env, payload, outcome)
		if err != nil {
			if errors.Is(err, errMalformedEvent) {
				s.reject(ctx, w, http.StatusBadRequest, errMalformedEvent, err)
				return
			}
			s.reject(ctx, w, http.StatusInternalServerError, errReconcileFailed, err)
			return
		}

		s.accept(ctx, w, env, outcome)
	})
}

// route settles a normalized event with the handler registered for its
// kind. Kinds with no handler are acknowledged untouched; failing them
// would make the provider disable the endpoint over events this service
// never wanted.
func (s *Server) route(ctx context.Context, env *events.Envelope) (string, error) {
	handler, ok := s.handlers[env.Kind]
	if !ok {
		logger := logging.FromContext(ctx)
		logger.DebugContext(ctx, "ignoring event of unhandled kind",
			"kind", env.Kind,
			"event_id", env.ID)
		return outcomeUnhandled, nil
	}
	return handler(ctx, env)
}

// handleCheckoutSessionCompleted reconciles a completed checkout into the
// record store by marking the purchasing user as paid.
func (s *Server) handleCheckoutSessionCompleted(ctx context.Context, env *events.Envelope) (string, error) {
	session, err := events.ParseCheckoutSession(env.Payload)
	if err != nil {
		return outcomeFailed, fmt.Errorf("%w: %w", errMalformedEvent, err)
	}

	target := &ReconciliationTarget{
		Identity: session.Email(),
		Paid:     true,
	}
	if err := s.reconciler.Reconcile(ctx, target); err != nil {
		return outcomeFailed, fmt.Errorf("failed to reconcile checkout session: %w", err)
	}

	if target.Identity == "" {
		return outcomeSkipped, nil
	}
	return outcomeApplied, nil
}
