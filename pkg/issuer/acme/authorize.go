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
	"fmt"
	"sort"

	acmeapi "golang.org/x/crypto/acme"

	"github.com/mintward/mintward/pkg/issuer/acme/dns/util"
	logf "github.com/mintward/mintward/pkg/logs"
)

// NoDNSChallengeError is returned when the CA does not offer exactly one
// dns-01 challenge for an authorization. The CA response is ambiguous, so
// the request fails without a retry.
type NoDNSChallengeError struct {
	Host    string
	Offered int
}

func (e *NoDNSChallengeError) Error() string {
	return fmt.Sprintf("expected exactly one dns-01 challenge for %q, the CA offered %d", e.Host, e.Offered)
}

// Authorize creates one order covering domains and provisions the TXT record
// of every authorization on it. Records come back in domain-set order. On
// error the returned set still carries the records already provisioned, so
// the caller can release them.
func (s *Solver) Authorize(ctx context.Context, domains []string) (*ChallengeSet, error) {
	log := logf.FromContext(ctx)

	ids := make([]acmeapi.AuthzID, 0, len(domains))
	for _, domain := range domains {
		ids = append(ids, acmeapi.AuthzID{Type: "dns", Value: domain})
	}

	order, err := s.client.AuthorizeOrder(ctx, ids)
	if err != nil {
		return &ChallengeSet{}, fmt.Errorf("failed to create order for %v: %v", domains, err)
	}
	log.V(logf.DebugLevel).Info("created order", logf.OrderURLKey, order.URI)

	set := &ChallengeSet{Order: order}
	for _, authzURL := range order.AuthzURLs {
		record, err := s.startDNSChallenge(ctx, authzURL)
		if err != nil {
			return set, err
		}
		set.Records = append(set.Records, record)
	}
	sortRecords(set.Records, domains)

	return set, nil
}

// startDNSChallenge selects the dns-01 challenge of one authorization and
// provisions its TXT record through the DNS provider.
func (s *Solver) startDNSChallenge(ctx context.Context, authzURL string) (AuthorizationRecord, error) {
	log := logf.FromContext(ctx)

	authz, err := s.client.GetAuthorization(ctx, authzURL)
	if err != nil {
		return AuthorizationRecord{}, fmt.Errorf("failed to fetch authorization: %v", err)
	}
	host := hostOf(authz)
	log.V(logf.DebugLevel).Info("starting DNS challenge", "host", host)

	challenge, err := findDNSChallenge(host, authz)
	if err != nil {
		return AuthorizationRecord{}, err
	}

	value, err := s.client.DNS01ChallengeRecord(challenge.Token)
	if err != nil {
		return AuthorizationRecord{}, fmt.Errorf("failed to compute challenge response for %s: %v", host, err)
	}
	fqdn, value, _, err := util.ChallengeRecord(host, value, s.opts.DNS01Nameservers, s.opts.FollowCNAMEs)
	if err != nil {
		return AuthorizationRecord{}, err
	}

	changeID, err := s.provider.CreateTXTRecord(ctx, fqdn, value, s.accountNumber)
	if err != nil {
		return AuthorizationRecord{}, fmt.Errorf("failed to create challenge record for %s: %v", host, err)
	}
	logf.WithDNSRecord(log, fqdn, changeID).V(logf.DebugLevel).Info("created challenge record", "host", host)

	return AuthorizationRecord{
		Host:      host,
		AuthzURL:  authz.URI,
		Challenge: challenge,
		FQDN:      fqdn,
		Value:     value,
		ChangeID:  changeID,
	}, nil
}

// hostOf reconstructs the requested domain of an authorization. Wildcard
// orders come back with the base identifier plus a flag.
func hostOf(authz *acmeapi.Authorization) string {
	if authz.Wildcard {
		return "*." + authz.Identifier.Value
	}
	return authz.Identifier.Value
}

func findDNSChallenge(host string, authz *acmeapi.Authorization) (*acmeapi.Challenge, error) {
	var found []*acmeapi.Challenge
	for _, challenge := range authz.Challenges {
		if challenge.Type == "dns-01" {
			found = append(found, challenge)
		}
	}
	if len(found) != 1 {
		return nil, &NoDNSChallengeError{Host: host, Offered: len(found)}
	}
	return found[0], nil
}

// sortRecords puts records in requested-domain order. The CA does not
// guarantee any authorization order on the order resource.
func sortRecords(records []AuthorizationRecord, domains []string) {
	position := make(map[string]int, len(domains))
	for i, domain := range domains {
		if _, ok := position[domain]; !ok {
			position[domain] = i
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return position[records[i].Host] < position[records[j].Host]
	})
}
