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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	acmeapi "golang.org/x/crypto/acme"

	acmecl "github.com/mintward/mintward/pkg/acme/client"
)

// orderFixture fakes a CA holding one order over the given authorizations.
// The order lists them in the given order.
func orderFixture(authzs ...*acmeapi.Authorization) (*acmecl.FakeACME, *acmeapi.Order) {
	order := &acmeapi.Order{
		URI:    "https://ca.example.com/order/1",
		Status: acmeapi.StatusPending,
	}
	byURL := make(map[string]*acmeapi.Authorization, len(authzs))
	for _, authz := range authzs {
		order.AuthzURLs = append(order.AuthzURLs, authz.URI)
		byURL[authz.URI] = authz
	}
	client := &acmecl.FakeACME{
		FakeAuthorizeOrder: func(ctx context.Context, ids []acmeapi.AuthzID, opt ...acmeapi.OrderOption) (*acmeapi.Order, error) {
			return order, nil
		},
		FakeGetAuthorization: func(ctx context.Context, url string) (*acmeapi.Authorization, error) {
			authz, ok := byURL[url]
			if !ok {
				return nil, errors.New("no such authorization")
			}
			return authz, nil
		},
		FakeDNS01ChallengeRecord: func(token string) (string, error) {
			return "value-" + token, nil
		},
	}
	return client, order
}

func dnsAuthz(url, identifier string, wildcard bool, challenges ...*acmeapi.Challenge) *acmeapi.Authorization {
	return &acmeapi.Authorization{
		URI:        url,
		Status:     acmeapi.StatusPending,
		Identifier: acmeapi.AuthzID{Type: "dns", Value: identifier},
		Wildcard:   wildcard,
		Challenges: challenges,
	}
}

func TestAuthorize(t *testing.T) {
	// The CA deliberately lists www before the apex.
	client, order := orderFixture(
		dnsAuthz("https://ca.example.com/authz/www", "www.example.com", false,
			&acmeapi.Challenge{Type: "http-01", Token: "h-www"},
			&acmeapi.Challenge{Type: "dns-01", Token: "d-www"},
		),
		dnsAuthz("https://ca.example.com/authz/apex", "example.com", false,
			&acmeapi.Challenge{Type: "dns-01", Token: "d-apex"},
		),
	)
	provider := &fakeDNSProvider{}
	solver := newTestSolver(client, provider, "123")

	set, err := solver.Authorize(testContext(t), []string{"example.com", "www.example.com"})
	require.NoError(t, err)
	require.Equal(t, order, set.Order)
	require.Len(t, set.Records, 2)

	assert.Equal(t, "example.com", set.Records[0].Host)
	assert.Equal(t, "_acme-challenge.example.com.", set.Records[0].FQDN)
	assert.Equal(t, "value-d-apex", set.Records[0].Value)
	assert.Equal(t, "change-_acme-challenge.example.com.", set.Records[0].ChangeID)
	assert.Equal(t, "https://ca.example.com/authz/apex", set.Records[0].AuthzURL)

	assert.Equal(t, "www.example.com", set.Records[1].Host)
	assert.Equal(t, "_acme-challenge.www.example.com.", set.Records[1].FQDN)
	assert.Equal(t, "value-d-www", set.Records[1].Value)
	require.NotNil(t, set.Records[1].Challenge)
	assert.Equal(t, "dns-01", set.Records[1].Challenge.Type)

	assert.Equal(t, 2, provider.count("create"))
	for _, call := range provider.calls {
		assert.Equal(t, "123", call.args[len(call.args)-1], "account number should reach the provider")
	}
}

func TestAuthorizeWildcard(t *testing.T) {
	client, _ := orderFixture(dnsAuthz("https://ca.example.com/authz/wild", "example.com", true,
		&acmeapi.Challenge{Type: "dns-01", Token: "d-wild"},
	))
	provider := &fakeDNSProvider{}
	solver := newTestSolver(client, provider, "")

	set, err := solver.Authorize(testContext(t), []string{"*.example.com"})
	require.NoError(t, err)
	require.Len(t, set.Records, 1)

	// A wildcard domain validates at the record of its base name.
	assert.Equal(t, "*.example.com", set.Records[0].Host)
	assert.Equal(t, "_acme-challenge.example.com.", set.Records[0].FQDN)
}

func TestAuthorizeChallengeSelection(t *testing.T) {
	tests := map[string]struct {
		challenges      []*acmeapi.Challenge
		expectedOffered int
	}{
		"should fail when the CA offers no dns-01 challenge": {
			challenges: []*acmeapi.Challenge{
				{Type: "http-01", Token: "h"},
				{Type: "tls-alpn-01", Token: "t"},
			},
			expectedOffered: 0,
		},
		"should fail when the CA offers more than one dns-01 challenge": {
			challenges: []*acmeapi.Challenge{
				{Type: "dns-01", Token: "d1"},
				{Type: "dns-01", Token: "d2"},
			},
			expectedOffered: 2,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client, _ := orderFixture(dnsAuthz("https://ca.example.com/authz/1", "example.com", false, test.challenges...))
			provider := &fakeDNSProvider{}
			solver := newTestSolver(client, provider, "")

			_, err := solver.Authorize(testContext(t), []string{"example.com"})
			var challengeErr *NoDNSChallengeError
			require.ErrorAs(t, err, &challengeErr)
			assert.Equal(t, "example.com", challengeErr.Host)
			assert.Equal(t, test.expectedOffered, challengeErr.Offered)
			assert.Equal(t, 0, provider.count("create"), "no record should be created")
		})
	}
}

func TestAuthorizePartialFailure(t *testing.T) {
	client, _ := orderFixture(
		dnsAuthz("https://ca.example.com/authz/a", "a.example.com", false,
			&acmeapi.Challenge{Type: "dns-01", Token: "d-a"},
		),
		dnsAuthz("https://ca.example.com/authz/b", "b.example.com", false,
			&acmeapi.Challenge{Type: "dns-01", Token: "d-b"},
		),
	)

	provider := &fakeDNSProvider{
		CreateFn: func(ctx context.Context, fqdn, value, accountNumber string) (string, error) {
			if fqdn == "_acme-challenge.b.example.com." {
				return "", errors.New("zone is on fire")
			}
			return "change-" + fqdn, nil
		},
	}
	solver := newTestSolver(client, provider, "")

	set, err := solver.Authorize(testContext(t), []string{"a.example.com", "b.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create challenge record for b.example.com")

	// The set still carries the record already provisioned, so the caller
	// can release it.
	require.NotNil(t, set)
	require.Len(t, set.Records, 1)
	assert.Equal(t, "a.example.com", set.Records[0].Host)
}

func TestAuthorizeOrderFailure(t *testing.T) {
	client := &acmecl.FakeACME{
		FakeAuthorizeOrder: func(ctx context.Context, ids []acmeapi.AuthzID, opt ...acmeapi.OrderOption) (*acmeapi.Order, error) {
			return nil, errors.New("CA rejected the order")
		},
	}
	provider := &fakeDNSProvider{}
	solver := newTestSolver(client, provider, "")

	set, err := solver.Authorize(testContext(t), []string{"example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create order")
	require.NotNil(t, set)
	assert.Empty(t, set.Records)
	assert.Equal(t, 0, provider.count("create"))
}
