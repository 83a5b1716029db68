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

// Package issuer is the embedding surface of this library. An ACMEIssuer
// issues certificates over the dns-01 flow, either immediately or deferred
// behind a tracking record that a later resolution run picks up.
package issuer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mintward/mintward/pkg/acme/accounts"
	"github.com/mintward/mintward/pkg/issuer/acme"
	"github.com/mintward/mintward/pkg/issuer/acme/dns"
	"github.com/mintward/mintward/pkg/issuer/authorizations"
	logf "github.com/mintward/mintward/pkg/logs"
	"github.com/mintward/mintward/pkg/metrics"
)

const defaultBatchConcurrency = 4

var (
	// ErrMissingDNSProvider is returned by CreateCertificate when the
	// request names no DNS provider.
	ErrMissingDNSProvider = errors.New("a DNS provider is required for ACME certificates")
	// ErrRoute53AccountRequired is returned when a route53 request carries
	// no account number in its provider credentials.
	ErrRoute53AccountRequired = errors.New("the route53 DNS provider does not have an account number configured")
)

// IssuanceOptions describes one certificate request.
type IssuanceOptions struct {
	CommonName      string
	SubjectAltNames []string
	// Authority is the authority options document, a JSON list of
	// {name, value} pairs. See ParseAuthorityOptions.
	Authority []byte
	// DNSProviderType selects the registered provider that will answer the
	// dns-01 challenges.
	DNSProviderType string
	// DNSProviderCredentials is the provider's per-request credential
	// document. route53 requires an account_id entry.
	DNSProviderCredentials []byte
	// CreateImmediately runs the full pipeline now instead of deferring the
	// request behind a tracking record.
	CreateImmediately bool
}

// IssuanceOutcome is the result of an issuance operation. A deferred
// request carries only the ExternalID of its tracking record.
type IssuanceOutcome struct {
	Certificate []byte
	Chain       []byte
	ExternalID  string
}

// PendingCertificate is a previously deferred request due for resolution.
type PendingCertificate struct {
	// Name identifies the request in logs.
	Name string
	// CSR is the PEM certificate request to submit once the domains are
	// validated.
	CSR []byte
	// ExternalID is the tracking record created when the request was
	// deferred.
	ExternalID string
	// Authority is the authority options document of the request.
	Authority []byte
}

// Result pairs a pending certificate with its resolution.
type Result struct {
	Pending *PendingCertificate
	Outcome *IssuanceOutcome
	Err     error
}

// ProviderSource resolves DNS provider type names to the capability objects
// that answer dns-01 challenges. A *dns.Registry satisfies it.
type ProviderSource interface {
	Provider(providerType string) (dns.Provider, error)
}

var _ ProviderSource = &dns.Registry{}

// Options tunes an ACMEIssuer.
type Options struct {
	// Defaults are the deployment-wide fallbacks for authority options.
	Defaults Defaults
	// Solver carries the challenge solver timings.
	Solver acme.SolverOptions
	// BatchConcurrency bounds how many pending certificates resolve at
	// once.
	BatchConcurrency int
	// Metrics instruments issuance operations and the ACME HTTP client
	// when set.
	Metrics *metrics.Metrics
	// Sessions caches established ACME sessions across operations when
	// set.
	Sessions accounts.Registry
	// NewACMEClient overrides ACME client construction. Used by tests.
	NewACMEClient accounts.NewClientFunc
}

// ACMEIssuer issues certificates against ACME authorities using dns-01
// validation.
type ACMEIssuer struct {
	defaults         Defaults
	providers        ProviderSource
	tracking         authorizations.Service
	solverOpts       acme.SolverOptions
	batchConcurrency int
	metrics          *metrics.Metrics
	sessions         accounts.Registry
	newClient        accounts.NewClientFunc
}

// New returns an issuer resolving DNS providers through providers and
// recording deferred requests through tracking.
func New(providers ProviderSource, tracking authorizations.Service, opts Options) *ACMEIssuer {
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}
	return &ACMEIssuer{
		defaults:         opts.Defaults,
		providers:        providers,
		tracking:         tracking,
		solverOpts:       opts.Solver,
		batchConcurrency: opts.BatchConcurrency,
		metrics:          opts.Metrics,
		sessions:         opts.Sessions,
		newClient:        opts.NewACMEClient,
	}
}

// GetDomains returns the domain set of a request: the common name first,
// then the subject alternative names in input order, duplicates dropped.
func (i *ACMEIssuer) GetDomains(opts IssuanceOptions) []string {
	domains := []string{opts.CommonName}
	seen := map[string]bool{opts.CommonName: true}
	for _, name := range opts.SubjectAltNames {
		if seen[name] {
			continue
		}
		seen[name] = true
		domains = append(domains, name)
	}
	return domains
}

// CreateCertificate issues a certificate for the domains of opts. With
// CreateImmediately unset the request is recorded for a later resolution
// run and the returned outcome carries only the tracking ID. Configuration
// problems are reported before any DNS or CA call is made.
func (i *ACMEIssuer) CreateCertificate(ctx context.Context, csrPEM []byte, opts IssuanceOptions) (*IssuanceOutcome, error) {
	log := logf.FromContext(ctx, "issuer").WithValues(
		logf.DomainNameKey, opts.CommonName,
		logf.DNSProviderKey, opts.DNSProviderType,
	)
	ctx = logf.NewContext(ctx, log)

	if opts.DNSProviderType == "" {
		return nil, ErrMissingDNSProvider
	}
	account, err := accountNumber(opts.DNSProviderCredentials)
	if err != nil {
		return nil, err
	}
	if opts.DNSProviderType == dns.ProviderRoute53 && account == "" {
		return nil, ErrRoute53AccountRequired
	}
	provider, err := i.providers.Provider(opts.DNSProviderType)
	if err != nil {
		return nil, err
	}

	domains := i.GetDomains(opts)

	if !opts.CreateImmediately {
		id, err := i.tracking.Create(ctx, account, domains, opts.DNSProviderType)
		if err != nil {
			return nil, fmt.Errorf("failed to record pending authorization: %s", err)
		}
		log.V(logf.InfoLevel).Info("deferred certificate creation", "id", id, "domains", domains)
		i.observe("create_certificate", "deferred")
		return &IssuanceOutcome{ExternalID: id}, nil
	}

	session, err := i.session(ctx, opts.Authority)
	if err != nil {
		i.observe("create_certificate", "failure")
		return nil, err
	}

	solver := acme.NewSolver(session.Client, provider, account, i.solverOpts)
	set, err := i.orchestrate(ctx, solver, domains)
	if err != nil {
		i.observe("create_certificate", "failure")
		return nil, err
	}
	outcome, err := i.completeSet(ctx, solver, set, csrPEM, "")
	i.observe("create_certificate", outcomeOf(err))
	return outcome, err
}

// ResolvePendingCertificate runs validation and issuance for one previously
// deferred request.
func (i *ACMEIssuer) ResolvePendingCertificate(ctx context.Context, pending *PendingCertificate) (*IssuanceOutcome, error) {
	log := logf.FromContext(ctx, "issuer").WithValues("certificate", pending.Name)
	ctx = logf.NewContext(ctx, log)

	p, err := i.preparePending(ctx, pending)
	if err != nil {
		log.Error(err, "unable to resolve pending certificate")
		i.observe("resolve_pending", "failure")
		return nil, err
	}
	outcome, err := i.completeSet(ctx, p.solver, p.set, p.pending.CSR, p.pending.ExternalID)
	if err != nil {
		log.Error(err, "unable to resolve pending certificate")
	}
	i.observe("resolve_pending", outcomeOf(err))
	return outcome, err
}

// ResolvePendingCertificates resolves a batch of deferred requests and
// returns one result per request, in input order. The batch runs in two
// phases so DNS propagation overlaps across items: first every item's
// challenge records are provisioned, then validation and issuance run for
// the items that survived. A failed item reports its error in its slot
// without affecting the rest; an item failing the first phase has its
// records released immediately.
func (i *ACMEIssuer) ResolvePendingCertificates(ctx context.Context, pendings []*PendingCertificate) []Result {
	log := logf.FromContext(ctx, "issuer")

	results := make([]Result, len(pendings))
	prepared := make([]*pendingIssuance, len(pendings))

	var g errgroup.Group
	g.SetLimit(i.batchConcurrency)
	for idx, pending := range pendings {
		idx, pending := idx, pending
		results[idx] = Result{Pending: pending}
		g.Go(func() error {
			p, err := i.preparePending(ctx, pending)
			if err != nil {
				log.Error(err, "unable to resolve pending certificate", "certificate", pending.Name)
				results[idx].Err = err
				i.observe("resolve_pending", "failure")
				return nil
			}
			prepared[idx] = p
			return nil
		})
	}
	_ = g.Wait()

	var g2 errgroup.Group
	g2.SetLimit(i.batchConcurrency)
	for idx, p := range prepared {
		idx, p := idx, p
		if p == nil {
			continue
		}
		g2.Go(func() error {
			outcome, err := i.completeSet(ctx, p.solver, p.set, p.pending.CSR, p.pending.ExternalID)
			if err != nil {
				log.Error(err, "unable to resolve pending certificate", "certificate", p.pending.Name)
				results[idx].Err = err
			} else {
				results[idx].Outcome = outcome
			}
			i.observe("resolve_pending", outcomeOf(err))
			return nil
		})
	}
	_ = g2.Wait()

	return results
}

// CreateAuthorityOptions carries the configuration options of a new
// authority.
type CreateAuthorityOptions struct {
	Options []AuthorityOption
}

// Role grants its holders issuance rights under an authority.
type Role struct {
	Name string
}

// Authority is the outcome of CreateAuthority.
type Authority struct {
	// RootCertificate is the PEM root presented for certificates issued
	// under this authority.
	RootCertificate string
	// Chain is always empty for ACME authorities.
	Chain string
	Roles []Role
}

// CreateAuthority materialises a new ACME authority: the configured root
// certificate, overridden by the authority's own certificate option when
// one is set, and the single role "acme".
func (i *ACMEIssuer) CreateAuthority(opts CreateAuthorityOptions) (*Authority, error) {
	if len(opts.Options) == 0 {
		return nil, &InvalidAuthorityConfigError{Reason: "options not set"}
	}
	root := i.defaults.RootCertificate
	for _, option := range opts.Options {
		if option.Name == "certificate" && option.Value != "" {
			root = option.Value
		}
	}
	return &Authority{
		RootCertificate: root,
		Roles:           []Role{{Name: "acme"}},
	}, nil
}

// pendingIssuance is a resumed request that has passed orchestration:
// challenge records are provisioned, validation and issuance remain.
type pendingIssuance struct {
	pending *PendingCertificate
	solver  *acme.Solver
	set     *acme.ChallengeSet
}

// preparePending resumes a deferred request up to provisioned challenge
// records.
func (i *ACMEIssuer) preparePending(ctx context.Context, pending *PendingCertificate) (*pendingIssuance, error) {
	session, err := i.session(ctx, pending.Authority)
	if err != nil {
		return nil, err
	}
	authz, err := i.tracking.Get(ctx, pending.ExternalID)
	if err != nil {
		return nil, err
	}
	provider, err := i.providers.Provider(authz.ProviderType)
	if err != nil {
		return nil, err
	}

	solver := acme.NewSolver(session.Client, provider, authz.AccountNumber, i.solverOpts)
	set, err := i.orchestrate(ctx, solver, authz.Domains)
	if err != nil {
		return nil, err
	}
	return &pendingIssuance{pending: pending, solver: solver, set: set}, nil
}

// orchestrate provisions the challenge records for the domain set. On
// failure the records created before the error are released and only the
// error is returned.
func (i *ACMEIssuer) orchestrate(ctx context.Context, solver *acme.Solver, domains []string) (*acme.ChallengeSet, error) {
	set, err := solver.Authorize(ctx, domains)
	if err != nil {
		solver.CleanupRecords(context.WithoutCancel(ctx), set.Records)
		return nil, err
	}
	return set, nil
}

// completeSet validates the provisioned records and requests the
// certificate.
func (i *ACMEIssuer) completeSet(ctx context.Context, solver *acme.Solver, set *acme.ChallengeSet, csrPEM []byte, externalID string) (*IssuanceOutcome, error) {
	if err := solver.Finalize(ctx, set); err != nil {
		return nil, err
	}
	bundle, err := solver.RequestCertificate(ctx, set, csrPEM)
	if err != nil {
		return nil, err
	}
	return &IssuanceOutcome{
		Certificate: bundle.Certificate,
		Chain:       bundle.Chain,
		ExternalID:  externalID,
	}, nil
}

// session resolves the authority options and establishes an ACME session,
// reusing a cached one when a session registry is configured.
func (i *ACMEIssuer) session(ctx context.Context, authorityOptions []byte) (*accounts.Session, error) {
	authority, err := ParseAuthorityOptions(authorityOptions, i.defaults)
	if err != nil {
		return nil, err
	}

	cfg := accounts.Config{
		DirectoryURL: authority.DirectoryURL,
		Email:        authority.Email,
		UserAgent:    i.defaults.UserAgent,
		Metrics:      i.metrics,
		NewClient:    i.newClient,
	}
	if i.sessions != nil {
		if cached, err := i.sessions.GetSession(accounts.Fingerprint(cfg)); err == nil {
			return cached, nil
		}
	}
	session, err := accounts.NewSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if i.sessions != nil {
		i.sessions.AddSession(accounts.Fingerprint(cfg), session)
	}
	return session, nil
}

type providerCredentials struct {
	AccountID string `json:"account_id"`
}

// accountNumber extracts the provider account from a credentials document.
// Absent credentials mean no account scoping.
func accountNumber(credentials []byte) (string, error) {
	if len(credentials) == 0 {
		return "", nil
	}
	var creds providerCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return "", fmt.Errorf("failed to decode DNS provider credentials: %s", err)
	}
	return creds.AccountID, nil
}

func (i *ACMEIssuer) observe(operation, outcome string) {
	if i.metrics == nil {
		return
	}
	i.metrics.IncrementIssuanceCallCount(operation, outcome)
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
