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
	"errors"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/cli"
)

// Config defines the set of environment variables required for running
// this application.
type Config struct {
	Port      string
	ProjectID string

	WebhookSecret      string
	SignatureTolerance time.Duration

	StoreEndpoint       string
	StoreAPIKey         string
	StoreTable          string
	StoreIdentityColumn string
	StoreTimeout        time.Duration

	ArchiveProjectID string
	ArchiveTopicID   string
	ArchiveTimeout   time.Duration
}

// Validate validates the service config after load.
func (cfg *Config) Validate() error {
	var merr error

	if cfg.WebhookSecret == "" {
		merr = errors.Join(merr, fmt.Errorf("WEBHOOK_SECRET is required"))
	}

	if cfg.SignatureTolerance <= 0 {
		merr = errors.Join(merr, fmt.Errorf("SIGNATURE_TOLERANCE must be positive"))
	}

	if cfg.StoreEndpoint == "" {
		merr = errors.Join(merr, fmt.Errorf("STORE_ENDPOINT is required"))
	}

	if cfg.StoreAPIKey == "" {
		merr = errors.Join(merr, fmt.Errorf("STORE_API_KEY is required"))
	}

	if cfg.StoreTable == "" {
		merr = errors.Join(merr, fmt.Errorf("STORE_TABLE is required"))
	}

	if cfg.StoreIdentityColumn == "" {
		merr = errors.Join(merr, fmt.Errorf("STORE_IDENTITY_COLUMN is required"))
	}

	if cfg.StoreTimeout <= 0 {
		merr = errors.Join(merr, fmt.Errorf("STORE_TIMEOUT must be positive"))
	}

	if cfg.ArchiveTopicID != "" {
		if cfg.ArchiveProjectID == "" && cfg.ProjectID == "" {
			merr = errors.Join(merr, fmt.Errorf("PROJECT_ID or ARCHIVE_PROJECT_ID is required when ARCHIVE_TOPIC_ID is set"))
		}

		if cfg.ArchiveTimeout <= 0 {
			merr = errors.Join(merr, fmt.Errorf("ARCHIVE_TIMEOUT must be positive"))
		}
	}

	return merr
}

// ToFlags binds the config to the given [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("COMMON OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &cfg.Port,
		EnvVar:  "PORT",
		Default: "8080",
		Usage:   `The port the webhook server listens to.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "project-id",
		Target: &cfg.ProjectID,
		EnvVar: "PROJECT_ID",
		Usage:  `Google Cloud project ID, used for log correlation and as the default archive project.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "webhook-secret",
		Target: &cfg.WebhookSecret,
		EnvVar: "WEBHOOK_SECRET",
		Usage:  `The payment provider endpoint secret, as a literal or a Secret Manager resource name (projects/*/secrets/*/versions/*).`,
	})

	f.DurationVar(&cli.DurationVar{
		Name:    "signature-tolerance",
		Target:  &cfg.SignatureTolerance,
		EnvVar:  "SIGNATURE_TOLERANCE",
		Default: 5 * time.Minute,
		Usage:   `How far a signed event timestamp may drift from server time before the delivery is rejected.`,
	})

	f = set.NewSection("RECORD STORE OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:   "store-endpoint",
		Target: &cfg.StoreEndpoint,
		EnvVar: "STORE_ENDPOINT",
		Usage:  `Base URL of the user record store.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "store-api-key",
		Target: &cfg.StoreAPIKey,
		EnvVar: "STORE_API_KEY",
		Usage:  `Service role key for the record store, as a literal or a Secret Manager resource name (projects/*/secrets/*/versions/*).`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "store-table",
		Target:  &cfg.StoreTable,
		EnvVar:  "STORE_TABLE",
		Default: "users",
		Usage:   `The table holding user records.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "store-identity-column",
		Target:  &cfg.StoreIdentityColumn,
		EnvVar:  "STORE_IDENTITY_COLUMN",
		Default: "email",
		Usage:   `The column user records are addressed by.`,
	})

	f.DurationVar(&cli.DurationVar{
		Name:    "store-timeout",
		Target:  &cfg.StoreTimeout,
		EnvVar:  "STORE_TIMEOUT",
		Default: 10 * time.Second,
		Usage:   `The timeout for record store requests.`,
	})

	f = set.NewSection("EVENT ARCHIVE OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:   "archive-project-id",
		Target: &cfg.ArchiveProjectID,
		EnvVar: "ARCHIVE_PROJECT_ID",
		Usage:  `The project holding the archive topic. Defaults to PROJECT_ID.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "archive-topic-id",
		Target: &cfg.ArchiveTopicID,
		EnvVar: "ARCHIVE_TOPIC_ID",
		Usage:  `Google PubSub topic ID for the event archive. Leave empty to disable archiving.`,
	})

	f.DurationVar(&cli.DurationVar{
		Name:    "archive-timeout",
		Target:  &cfg.ArchiveTimeout,
		EnvVar:  "ARCHIVE_TIMEOUT",
		Default: 10 * time.Second,
		Usage:   `The timeout for archive publishes.`,
	})

	return set
}
