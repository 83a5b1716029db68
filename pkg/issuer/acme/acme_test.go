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

package acme

import (
	"context"
	"sync"
	"testing"
	"time"

	acmecl "github.com/mintward/mintward/pkg/acme/client"
	"github.com/mintward/mintward/pkg/issuer/acme/dns"
	"github.com/mintward/mintward/pkg/issuer/acme/dns/util"
)

type fakeDNSProviderCall struct {
	name string
	args []interface{}
}

// fakeDNSProvider records every call and delegates to the corresponding
// field when set.
type fakeDNSProvider struct {
	mu    sync.Mutex
	calls []fakeDNSProviderCall

	CreateFn func(ctx context.Context, fqdn, value, accountNumber string) (string, error)
	WaitFn   func(ctx context.Context, changeID, accountNumber string) error
	DeleteFn func(ctx context.Context, changeID, accountNumber, fqdn, value string) error
}

var _ dns.Provider = &fakeDNSProvider{}

func (f *fakeDNSProvider) record(name string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fakeDNSProviderCall{name: name, args: args})
}

func (f *fakeDNSProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call.name == name {
			n++
		}
	}
	return n
}

func (f *fakeDNSProvider) CreateTXTRecord(ctx context.Context, fqdn, value, accountNumber string) (string, error) {
	f.record("create", fqdn, value, accountNumber)
	if f.CreateFn != nil {
		return f.CreateFn(ctx, fqdn, value, accountNumber)
	}
	return "change-" + fqdn, nil
}

func (f *fakeDNSProvider) WaitForPropagation(ctx context.Context, changeID, accountNumber string) error {
	f.record("wait", changeID, accountNumber)
	if f.WaitFn != nil {
		return f.WaitFn(ctx, changeID, accountNumber)
	}
	return nil
}

func (f *fakeDNSProvider) DeleteTXTRecord(ctx context.Context, changeID, accountNumber, fqdn, value string) error {
	f.record("delete", changeID, accountNumber, fqdn, value)
	if f.DeleteFn != nil {
		return f.DeleteFn(ctx, changeID, accountNumber, fqdn, value)
	}
	return nil
}

// newTestSolver shrinks every timing so failing paths resolve quickly.
func newTestSolver(client acmecl.Interface, provider dns.Provider, accountNumber string) *Solver {
	return NewSolver(client, provider, accountNumber, SolverOptions{
		DNS01Nameservers:         []string{"127.0.0.1:5353"},
		RecursiveNameserversOnly: true,
		PropagationDeadline:      time.Second,
		VerificationTimeout:      200 * time.Millisecond,
		VerificationInterval:     10 * time.Millisecond,
		PollInterval:             time.Millisecond,
		MaxPollAttempts:          3,
	})
}

// stubPreCheckDNS swaps the propagation pre-check for the duration of a
// test.
func stubPreCheckDNS(t *testing.T, f func(fqdn, value string) (bool, error)) {
	old := util.PreCheckDNS
	util.PreCheckDNS = func(fqdn, value string, nameservers []string, useAuthoritative bool) (bool, error) {
		return f(fqdn, value)
	}
	t.Cleanup(func() { util.PreCheckDNS = old })
}
