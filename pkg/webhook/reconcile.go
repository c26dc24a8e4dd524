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
	"time"

	"github.com/abcxyz/pkg/logging"
)

// ReconciliationTarget names the record store row a settled payment event
// resolves to and the state it should converge on.
type ReconciliationTarget struct {
	// Identity is the value of the store's identity column, typically an
	// email address. Empty means the event carried no identity.
	Identity string

	// Paid is the desired paid state for the identified record.
	Paid bool
}

// Reconciler converges record store rows onto the state carried by
// verified payment events.
type Reconciler struct {
	store        UserStore
	storeTimeout time.Duration
}

// NewReconciler creates a Reconciler that writes through the given store,
// bounding each write by the given timeout.
func NewReconciler(store UserStore, storeTimeout time.Duration) *Reconciler {
	return &Reconciler{
		store:        store,
		storeTimeout: storeTimeout,
	}
}

// Reconcile applies the target state to the record store. Writing the
// same state twice is a no-op by construction, so redelivered events are
// safe without any dedup bookkeeping.
//
// A target with no identity is not an error. The provider emits such
// events for flows this service does not own, and there is no record to
// converge.
//
// The store update is detached from the request context. The caller has
// already committed to processing the event, and a client hangup must
// not strand the record in its pre-event state. The update stays bounded
// by the configured store timeout.
func (r *Reconciler) Reconcile(ctx context.Context, target *ReconciliationTarget) error {
	logger := logging.FromContext(ctx)

	if target.Identity == "" {
		logger.InfoContext(ctx, "event carried no identity, nothing to reconcile")
		return nil
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()

	if err := r.store.SetPaid(storeCtx, target.Identity, target.Paid); err != nil {
		return fmt.Errorf("failed to update record store: %w", err)
	}

	logger.InfoContext(ctx, "reconciled record",
		"paid", target.Paid)
	return nil
}
