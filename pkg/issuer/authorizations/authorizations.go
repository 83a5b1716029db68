/*
Copyright 2026 The mintward Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package authorizations tracks certificate requests whose DNS validation is
// deferred to a later run. The issuer records one tracking entry per
// deferred request and resolves it when the pending certificate is picked up
// again.
package authorizations

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Service is the tracking port the issuer creates and resolves deferred
// requests through. Implementations backed by a real store live outside
// this module.
type Service interface {
	// Create records a deferred request and returns its tracking ID.
	Create(ctx context.Context, accountNumber string, domains []string, providerType string) (string, error)
	// Get returns the tracked request for the given ID.
	Get(ctx context.Context, id string) (*Authorization, error)
}

// Authorization is one tracked deferred request.
type Authorization struct {
	ID            string
	AccountNumber string
	Domains       []string
	ProviderType  string
}

// NotFoundError is returned by Get for an unknown tracking ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no pending authorization with ID %q", e.ID)
}

// Memory is an in-process Service for embedding and tests.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	byID   map[string]*Authorization
}

var _ Service = &Memory{}

func NewMemory() *Memory {
	return &Memory{byID: map[string]*Authorization{}}
}

func (m *Memory) Create(ctx context.Context, accountNumber string, domains []string, providerType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := strconv.FormatInt(m.nextID, 10)
	m.byID[id] = &Authorization{
		ID:            id,
		AccountNumber: accountNumber,
		Domains:       append([]string(nil), domains...),
		ProviderType:  providerType,
	}
	return id, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*Authorization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	authz, ok := m.byID[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	copied := *authz
	copied.Domains = append([]string(nil), authz.Domains...)
	return &copied, nil
}
