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
	"sync"
)

// MockUserStore is an in-memory UserStore that records every write it
// receives and can be primed to fail.
type MockUserStore struct {
	mu         sync.Mutex
	setPaidErr error
	identities []string
	paid       map[string]bool
}

func (m *MockUserStore) SetPaid(ctx context.Context, identity string, paid bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.identities = append(m.identities, identity)
	if m.setPaidErr != nil {
		return m.setPaidErr
	}
	if m.paid == nil {
		m.paid = make(map[string]bool)
	}
	m.paid[identity] = paid
	return nil
}

// SetPaidCalls reports how many writes the store received.
func (m *MockUserStore) SetPaidCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.identities)
}

// Identities returns the identities written, in order.
func (m *MockUserStore) Identities() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.identities...)
}

// Paid reports the stored paid state for the identity.
func (m *MockUserStore) Paid(identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paid[identity]
}
