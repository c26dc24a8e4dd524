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

// Package clients holds thin wrappers around the external messaging
// clients this service publishes through.
package clients

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Messenger sends messages to an event stream.
type Messenger interface {
	Send(ctx context.Context, msg []byte, attrs map[string]string) error
	Shutdown() error
}

// PubSubMessenger implements the Messenger interface for Google Cloud
// Pub/Sub.
type PubSubMessenger struct {
	projectID string
	topicID   string

	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubMessenger creates a new instance of the PubSubMessenger. The
// timeout bounds each publish; publishes that cannot complete within it
// fail rather than queue indefinitely.
func NewPubSubMessenger(ctx context.Context, projectID, topicID string, timeout time.Duration, opts ...option.ClientOption) (*PubSubMessenger, error) {
	// pubsub client forces you to provide a projectID
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	topic.PublishSettings.Timeout = timeout

	return &PubSubMessenger{
		projectID: projectID,
		topicID:   topicID,
		client:    client,
		topic:     topic,
	}, nil
}

// Send sends a message with the given attributes to the configured topic
// and waits for the server acknowledgement.
func (p *PubSubMessenger) Send(ctx context.Context, msg []byte, attrs map[string]string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       msg,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub: failed to get result: %w", err)
	}
	return nil
}

// Shutdown handles the graceful shutdown of the pubsub client. Pending
// publishes are flushed before the connection closes.
func (p *PubSubMessenger) Shutdown() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
