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
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/abcxyz/pkg/logging"

	"github.com/harterjay/payment-webhook-reconciler/pkg/events"
)

// archiveRecord is the shape published to the event archive topic for
// each verified delivery.
type archiveRecord struct {
	EventID  string          `json:"event_id"`
	Kind     string          `json:"kind"`
	Received string          `json:"received"`
	Outcome  string          `json:"outcome"`
	Payload  json.RawMessage `json:"payload"`
}

// archiveEvent publishes the settled delivery to the archive topic.
// Archival is strictly best effort. The webhook response is decided by
// verification and reconciliation alone, and a delivery that failed
// reconciliation is archived with its failure outcome rather than
// dropped.
func (s *Server) archiveEvent(ctx context.Context, received time.Time, env *events.Envelope, payload []byte, outcome string) {
	if s.archive == nil {
		return
	}
	logger := logging.FromContext(ctx)

	eventID := env.ID
	if eventID == "" {
		// Some test fixtures and replay tools omit the event id. The
		// archive row still needs a key.
		eventID = uuid.New().String()
	}

	record := &archiveRecord{
		EventID:  eventID,
		Kind:     env.Kind,
		Received: received.Format(time.RFC3339Nano),
		Outcome:  outcome,
		Payload:  payload,
	}
	msg, err := json.Marshal(record)
	if err != nil {
		logger.ErrorContext(ctx, "failed to marshal archive record",
			"event_id", eventID,
			"error", err)
		return
	}

	// Detached from the request context so a client hangup cannot drop
	// the archive row, but still bounded.
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.archiveTimeout)
	defer cancel()

	attrs := map[string]string{
		"kind":    env.Kind,
		"outcome": outcome,
	}
	if err := s.archive.Send(archiveCtx, msg, attrs); err != nil {
		logger.ErrorContext(ctx, "failed to archive event",
			"event_id", eventID,
			"error", err)
	}
}
