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
	"time"

	"github.com/sethvargo/go-envconfig"
)

type config struct {
	EndpointURL           string        `env:"ENDPOINT_URL,required"`
	WebhookSecret         string        `env:"WEBHOOK_SECRET,required"`
	StoreEndpoint         string        `env:"STORE_ENDPOINT,required"`
	StoreAPIKey           string        `env:"STORE_API_KEY,required"`
	StoreTable            string        `env:"STORE_TABLE,default=users"`
	StoreIdentityColumn   string        `env:"STORE_IDENTITY_COLUMN,default=email"`
	StoreTimeout          time.Duration `env:"STORE_TIMEOUT,default=10s"`
	HTTPRequestTimeout    time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=60s"`
	PollRetryWaitDuration time.Duration `env:"POLL_RETRY_WAIT_DURATION,default=5s"`
	PollRetryLimit        uint64        `env:"POLL_RETRY_COUNT,default=5"`
}

func newTestConfig(ctx context.Context) (*config, error) {
	var c config
	if err := envconfig.ProcessWith(ctx, &c, envconfig.OsLookuper()); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &c, nil
}
