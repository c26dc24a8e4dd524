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
	"testing"
	"time"

	"github.com/abcxyz/pkg/testutil"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name: "missing_webhook_secret",
			cfg: &Config{
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
			},
			wantErr: "WEBHOOK_SECRET is required",
		},
		{
			name: "nonpositive_signature_tolerance",
			cfg: &Config{
				WebhookSecret:       "test-webhook-secret",
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
			},
			wantErr: "SIGNATURE_TOLERANCE must be positive",
		},
		{
			name: "missing_store_endpoint",
			cfg: &Config{
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
			},
			wantErr: "STORE_ENDPOINT is required",
		},
		{
			name: "missing_store_api_key",
			cfg: &Config{
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
			},
			wantErr: "STORE_API_KEY is required",
		},
		{
			name: "missing_store_table",
			cfg: &Config{
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
			},
			wantErr: "STORE_TABLE is required",
		},
		{
			name: "missing_store_identity_column",
			cfg: &Config{
				WebhookSecret:      "test-webhook-secret",
				SignatureTolerance: 5 * time.Minute,
				StoreEndpoint:      "https://test-store.example.com",
				StoreAPIKey:        "test-store-api-key",
				StoreTable:         "users",
				StoreTimeout:       10 * time.Second,
			},
			wantErr: "STORE_IDENTITY_COLUMN is required",
		},
		{
			name: "nonpositive_store_timeout",
			cfg: &Config{
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
			},
			wantErr: "STORE_TIMEOUT must be positive",
		},
		{
			name: "archive_missing_project",
			cfg: &Config{
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
				ArchiveTopicID:      "test-archive-topic-id",
				ArchiveTimeout:      10 * time.Second,
			},
			wantErr: "PROJECT_ID or ARCHIVE_PROJECT_ID is required when ARCHIVE_TOPIC_ID is set",
		},
		{
			name: "archive_nonpositive_timeout",
			cfg: &Config{
				ProjectID:           "test-project-id",
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
				ArchiveTopicID:      "test-archive-topic-id",
			},
			wantErr: "ARCHIVE_TIMEOUT must be positive",
		},
		{
			name: "archive_disabled_skips_archive_checks",
			cfg: &Config{
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
			},
		},
		{
			name: "success",
			cfg: &Config{
				Port:                "8080",
				ProjectID:           "test-project-id",
				WebhookSecret:       "test-webhook-secret",
				SignatureTolerance:  5 * time.Minute,
				StoreEndpoint:       "https://test-store.example.com",
				StoreAPIKey:         "test-store-api-key",
				StoreTable:          "users",
				StoreIdentityColumn: "email",
				StoreTimeout:        10 * time.Second,
				ArchiveProjectID:    "test-archive-project-id",
				ArchiveTopicID:      "test-archive-topic-id",
				ArchiveTimeout:      10 * time.Second,
			},
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.cfg.Validate()
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Errorf("Validate(%+v) got unexpected err: %s", tc.name, diff)
			}
		})
	}
}
