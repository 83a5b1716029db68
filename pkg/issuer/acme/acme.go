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

// Package acme implements the dns-01 issuance flow against an ACME CA: one
// order per certificate request, a provisioned TXT record per authorization,
// propagation-checked validation and guaranteed record cleanup.
package acme

import (
	"context"
	"time"

	acmeapi "golang.org/x/crypto/acme"

	acmecl "github.com/mintward/mintward/pkg/acme/client"
	"github.com/mintward/mintward/pkg/issuer/acme/dns"
	"github.com/mintward/mintward/pkg/issuer/acme/dns/util"
	logf "github.com/mintward/mintward/pkg/logs"
)

const (
	defaultPropagationDeadline  = 5 * time.Minute
	defaultVerificationTimeout  = 30 * time.Second
	defaultVerificationInterval = 2 * time.Second
	defaultPollInterval         = 60 * time.Second
	defaultMaxPollAttempts      = 10
)

// SolverOptions tunes the solver. The zero value picks the production
// defaults; tests shrink the timings.
type SolverOptions struct {
	// DNS01Nameservers are used for CNAME chasing, zone discovery and record
	// verification. Defaults to the recursive nameservers from
	// /etc/resolv.conf.
	DNS01Nameservers []string
	// RecursiveNameserversOnly verifies records against DNS01Nameservers
	// directly instead of the zone's authoritative nameservers.
	RecursiveNameserversOnly bool
	// FollowCNAMEs chases an existing CNAME at the challenge name so the
	// record is created where the CA will actually look.
	FollowCNAMEs bool

	// PropagationDeadline bounds WaitForPropagation per record. A stuck
	// provider fails that record instead of hanging the request.
	PropagationDeadline time.Duration
	// VerificationTimeout and VerificationInterval bound the local TXT
	// re-checks before a record is declared unverifiable.
	VerificationTimeout  time.Duration
	VerificationInterval time.Duration
	// PollInterval and MaxPollAttempts bound the order poll loop in
	// RequestCertificate.
	PollInterval    time.Duration
	MaxPollAttempts int
}

// Solver drives the dns-01 flow for one certificate request: Authorize, then
// Finalize, then RequestCertificate. A Solver is bound to one ACME session
// and one DNS provider.
type Solver struct {
	client        acmecl.Interface
	provider      dns.Provider
	accountNumber string
	opts          SolverOptions
}

// NewSolver returns a Solver issuing through client and provisioning
// challenge records through provider. accountNumber scopes the provider's
// credentials for this request and may be empty.
func NewSolver(client acmecl.Interface, provider dns.Provider, accountNumber string, opts SolverOptions) *Solver {
	if len(opts.DNS01Nameservers) == 0 {
		opts.DNS01Nameservers = util.RecursiveNameservers
	}
	if opts.PropagationDeadline == 0 {
		opts.PropagationDeadline = defaultPropagationDeadline
	}
	if opts.VerificationTimeout == 0 {
		opts.VerificationTimeout = defaultVerificationTimeout
	}
	if opts.VerificationInterval == 0 {
		opts.VerificationInterval = defaultVerificationInterval
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxPollAttempts == 0 {
		opts.MaxPollAttempts = defaultMaxPollAttempts
	}
	return &Solver{
		client:        client,
		provider:      provider,
		accountNumber: accountNumber,
		opts:          opts,
	}
}

// AuthorizationRecord tracks one provisioned dns-01 challenge from record
// creation through validation to cleanup.
type AuthorizationRecord struct {
	// Host is the requested domain, wildcard prefix included.
	Host string
	// AuthzURL is the CA's authorization resource for Host.
	AuthzURL string
	// Challenge is the selected dns-01 challenge.
	Challenge *acmeapi.Challenge
	// FQDN and Value describe the provisioned TXT record.
	FQDN  string
	Value string
	// ChangeID is the provider's handle for the record change.
	ChangeID string
}

// ChallengeSet is the outcome of Authorize: the CA order covering the whole
// domain set, plus one record per authorization in domain-set order.
type ChallengeSet struct {
	Order   *acmeapi.Order
	Records []AuthorizationRecord
}

// CleanupRecords deletes the TXT record of every authorization record.
// Deletion is best-effort: failures are logged and the remaining records are
// still attempted.
func (s *Solver) CleanupRecords(ctx context.Context, records []AuthorizationRecord) {
	for _, record := range records {
		log := logf.WithDNSRecord(logf.FromContext(ctx), record.FQDN, record.ChangeID)
		if err := s.provider.DeleteTXTRecord(ctx, record.ChangeID, s.accountNumber, record.FQDN, record.Value); err != nil {
			log.Error(err, "failed to delete challenge record")
			continue
		}
		log.V(logf.DebugLevel).Info("deleted challenge record")
	}
}
