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

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/harterjay/payment-webhook-reconciler/pkg/userstore"
)

// makeStoreClient creates a record store client for seeding and verifying
// test rows.
func makeStoreClient(ctx context.Context, tb testing.TB, cfg *config) *userstore.Client {
	tb.Helper()

	client, err := userstore.New(ctx, &userstore.Config{
		Endpoint:       cfg.StoreEndpoint,
		APIKey:         cfg.StoreAPIKey,
		Table:          cfg.StoreTable,
		IdentityColumn: cfg.StoreIdentityColumn,
		Timeout:        cfg.StoreTimeout,
	})
	if err != nil {
		tb.Fatal(err)
	}

	return client
}

// seedUnpaidUser creates (or resets) an unpaid record for the identity.
func seedUnpaidUser(ctx context.Context, tb testing.TB, client *userstore.Client, identity string) {
	tb.Helper()

	if err := client.Upsert(ctx, identity, false); err != nil {
		tb.Fatalf("failed to seed user record: %v", err)
	}
}

// pollUntilPaid polls the record store until the identity reads paid or the
// retries are exhausted.
func pollUntilPaid(ctx context.Context, tb testing.TB, client *userstore.Client, identity string, retryWaitDuration time.Duration, retryLimit uint64) {
	tb.Helper()

	b := retry.NewExponential(retryWaitDuration)
	if err := retry.Do(ctx, retry.WithMaxRetries(retryLimit, b), func(ctx context.Context) error {
		paid, err := client.GetPaid(ctx, identity)
		if err != nil {
			tb.Logf("query error: %v.", err)
			return retry.RetryableError(fmt.Errorf("failed to read record for %q: %w", identity, err))
		}
		if paid {
			// Early exit retry once the record converges.
			return nil
		}

		tb.Log("record not reconciled yet, retrying...")
		return retry.RetryableError(fmt.Errorf("record for %q still unpaid after timeout", identity))
	}); err != nil {
		tb.Errorf("Retry failed: %v.", err)
	}
}
