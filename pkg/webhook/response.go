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
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/logging"

	"github.com/harterjay/payment-webhook-reconciler/pkg/events"
)

// Client-facing responses. The provider retries on anything but 2xx, so
// the split between 400 and 500 decides whether a delivery is dead or
// comes back.
var (
	errMethodNotAllowed = fmt.Errorf("only POST requests are supported")
	errReadingPayload   = fmt.Errorf("failed to read payload")
	errNoPayload        = fmt.Errorf("no payload received")
	errInvalidSignature = fmt.Errorf("failed to verify payload signature")
	errMalformedEvent   = fmt.Errorf("failed to parse event payload")
	errReconcileFailed  = fmt.Errorf("failed to reconcile event")
)

// receivedOK is the acknowledgement body for settled deliveries.
var receivedOK = map[string]bool{"received": true}

// reject logs the request failure with its cause and renders the
// client-facing message. The cause stays in the logs, the provider
// dashboard only ever shows respErr.
func (s *Server) reject(ctx context.Context, w http.ResponseWriter, code int, respErr, cause error) {
	logger := logging.FromContext(ctx)
	if cause != nil {
		logger.ErrorContext(ctx, "failed to process webhook request",
			"code", code,
			"body", respErr.Error(),
			"error", cause)
	} else {
		logger.ErrorContext(ctx, "failed to process webhook request",
			"code", code,
			"body", respErr.Error())
	}
	s.h.RenderJSON(w, code, respErr)
}

// accept acknowledges a settled delivery.
func (s *Server) accept(ctx context.Context, w http.ResponseWriter, env *events.Envelope, outcome string) {
	logger := logging.FromContext(ctx)
	logger.InfoContext(ctx, "processed webhook event",
		"event_id", env.ID,
		"kind", env.Kind,
		"outcome", outcome)
	s.h.RenderJSON(w, http.StatusOK, receivedOK)
}
