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

// Package events normalizes payment provider webhook payloads into a small
// envelope the rest of the service routes on. Only the envelope is decoded
// here; the kind specific payload stays opaque until a handler for that
// kind inspects it.
package events

import (
	"encoding/json"
	"fmt"
)

// KindCheckoutSessionCompleted is the event kind the provider emits when a
// customer finishes the hosted checkout flow.
const KindCheckoutSessionCompleted = "checkout.session.completed"

// Envelope is the provider independent form of a webhook event.
type Envelope struct {
	// ID is the provider assigned event id. May be empty.
	ID string

	// Kind is the event type tag used for routing.
	Kind string

	// Payload is the kind specific object carried by the event. May be
	// empty for kinds that carry no object.
	Payload json.RawMessage
}

// wireEvent mirrors the provider JSON envelope.
type wireEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Normalize parses a verified request body into an Envelope. Bodies that
// are not JSON objects or carry no event type fail; unknown event types
// normalize successfully and are left to the router to settle.
func Normalize(body []byte) (*Envelope, error) {
	var raw wireEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse event envelope: %w", err)
	}
	if raw.Type == "" {
		return nil, fmt.Errorf("event envelope carries no type")
	}

	return &Envelope{
		ID:      raw.ID,
		Kind:    raw.Type,
		Payload: raw.Data.Object,
	}, nil
}

// CheckoutSession is the subset of the provider checkout session object
// this service reads.
type CheckoutSession struct {
	// CustomerEmail is the legacy top level email field, still set by
	// older API versions.
	CustomerEmail string `json:"customer_email"`

	// CustomerDetails carries the email on current API versions.
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// ParseCheckoutSession decodes the payload of a checkout.session.completed
// event. An absent payload decodes to an empty session.
func ParseCheckoutSession(raw json.RawMessage) (*CheckoutSession, error) {
	var session CheckoutSession
	if len(raw) == 0 {
		return &session, nil
	}
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	return &session, nil
}

// Email returns the customer email the session names, preferring the
// customer_details block over the legacy top level field. Empty when the
// session carries no email.
func (c *CheckoutSession) Email() string {
	if c.CustomerDetails.Email != "" {
		return c.CustomerDetails.Email
	}
	return c.CustomerEmail
}
