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

// Package dns resolves DNS provider type names to the capability objects the
// challenge solver drives to fulfil dns-01 challenges.
package dns

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/mintward/mintward/pkg/issuer/acme/dns/cloudflare"
	"github.com/mintward/mintward/pkg/issuer/acme/dns/dyndns"
	"github.com/mintward/mintward/pkg/issuer/acme/dns/route53"
	"github.com/mintward/mintward/pkg/issuer/acme/dns/util"
	logf "github.com/mintward/mintward/pkg/logs"
)

// Supported provider type names.
const (
	ProviderCloudflare = "cloudflare"
	ProviderDyn        = "dyn"
	ProviderRoute53    = "route53"
)

// Provider is the capability object for one DNS provider. Implementations
// must be safe for concurrent use: batch issuance drives a single Provider
// from multiple goroutines.
//
// The accountNumber argument carries the per-request account context.
// Providers whose credentials are not account-scoped ignore it; route53 maps
// it to a role assumption.
type Provider interface {
	// CreateTXTRecord creates a TXT record with the given value and returns
	// an opaque change ID which the other two operations accept.
	CreateTXTRecord(ctx context.Context, fqdn, value, accountNumber string) (changeID string, err error)
	// WaitForPropagation blocks until the change behind changeID is visible
	// on the provider's authoritative nameservers, or ctx is cancelled.
	WaitForPropagation(ctx context.Context, changeID, accountNumber string) error
	// DeleteTXTRecord removes the TXT record matching the given parameters.
	DeleteTXTRecord(ctx context.Context, changeID, accountNumber, fqdn, value string) error
}

// UnknownProviderError is returned when a provider type is unrecognized or
// has no credentials configured. It is a caller configuration error, always
// fatal for the request which carried the type.
type UnknownProviderError struct {
	Type string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("no DNS provider registered for type %q", e.Type)
}

// Options configures the provider registry. A provider is registered when
// its credential options are present, see NewRegistry.
type Options struct {
	// DNS01Nameservers are the nameservers used for zone discovery and
	// propagation checking. Defaults to the recursive nameservers from
	// /etc/resolv.conf.
	DNS01Nameservers []string `env:"ACME_DNS01_NAMESERVERS"`
	// UserAgent is sent on every provider API call which supports one.
	UserAgent string `env:"ACME_USER_AGENT" envDefault:"mintward"`

	Cloudflare CloudflareOptions `envPrefix:"CLOUDFLARE_"`
	Dyn        DynOptions        `envPrefix:"DYN_"`
	Route53    Route53Options    `envPrefix:"ROUTE53_"`
}

// CloudflareOptions holds either an API token, or the account email plus the
// global API key.
type CloudflareOptions struct {
	Email    string `env:"EMAIL"`
	APIKey   string `env:"API_KEY"`
	APIToken string `env:"API_TOKEN"`
}

// DynOptions holds Dyn Managed DNS session credentials. ZoneName pins all
// records to one zone; when empty the zone is discovered per record.
type DynOptions struct {
	CustomerName string `env:"CUSTOMER_NAME"`
	UserName     string `env:"USER_NAME"`
	Password     string `env:"PASSWORD"`
	ZoneName     string `env:"ZONE_NAME"`
}

// Route53Options holds AWS credentials and the name of the role assumed in
// each account a challenge runs against. Static keys are optional; without
// them the ambient AWS credential chain is used.
type Route53Options struct {
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	HostedZoneID    string `env:"HOSTED_ZONE_ID"`
	Region          string `env:"REGION"`
	Role            string `env:"ROLE"`
}

// OptionsFromEnv loads Options from the environment.
func OptionsFromEnv() (Options, error) {
	var opts Options
	if err := env.Parse(&opts); err != nil {
		return Options{}, fmt.Errorf("failed to parse DNS provider options from environment: %s", err)
	}
	return opts, nil
}

// dnsProviderConstructors defines how each provider is built. They are
// stubbed out in tests.
type dnsProviderConstructors struct {
	cloudFlare func(email, apiKey, apiToken string, dns01Nameservers []string, userAgent string) (*cloudflare.DNSProvider, error)
	dyn        func(customerName, userName, password, zoneName string, dns01Nameservers []string) (*dyndns.DNSProvider, error)
	route53    func(ctx context.Context, accessKeyID, secretAccessKey, hostedZoneID, region, role string, dns01Nameservers []string, userAgent string) (*route53.DNSProvider, error)
}

var defaultDNSProviderConstructors = dnsProviderConstructors{
	cloudFlare: cloudflare.NewDNSProviderCredentials,
	dyn:        dyndns.NewDNSProviderCredentials,
	route53:    route53.NewDNSProvider,
}

// Registry maps provider type names to configured providers. It is built
// once at startup and read-only afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry instantiates a provider for every provider type whose
// credentials are present in opts: cloudflare when an API key or token is
// set, dyn when a customer name is set, and route53 when a role or an access
// key is set. Providers with no credentials are simply not registered;
// incomplete credentials are a construction error.
func NewRegistry(ctx context.Context, opts Options) (*Registry, error) {
	return newRegistry(ctx, opts, defaultDNSProviderConstructors)
}

func newRegistry(ctx context.Context, opts Options, constructors dnsProviderConstructors) (*Registry, error) {
	log := logf.FromContext(ctx, "dns")

	nameservers := opts.DNS01Nameservers
	if len(nameservers) == 0 {
		nameservers = util.RecursiveNameservers
	}

	providers := make(map[string]Provider)

	if opts.Cloudflare.APIKey != "" || opts.Cloudflare.APIToken != "" {
		p, err := constructors.cloudFlare(opts.Cloudflare.Email, opts.Cloudflare.APIKey, opts.Cloudflare.APIToken, nameservers, opts.UserAgent)
		if err != nil {
			return nil, fmt.Errorf("error instantiating cloudflare challenge solver: %s", err)
		}
		providers[ProviderCloudflare] = p
	}

	if opts.Dyn.CustomerName != "" {
		p, err := constructors.dyn(opts.Dyn.CustomerName, opts.Dyn.UserName, opts.Dyn.Password, opts.Dyn.ZoneName, nameservers)
		if err != nil {
			return nil, fmt.Errorf("error instantiating dyn challenge solver: %s", err)
		}
		providers[ProviderDyn] = p
	}

	if opts.Route53.Role != "" || opts.Route53.AccessKeyID != "" {
		p, err := constructors.route53(ctx, opts.Route53.AccessKeyID, opts.Route53.SecretAccessKey, opts.Route53.HostedZoneID, opts.Route53.Region, opts.Route53.Role, nameservers, opts.UserAgent)
		if err != nil {
			return nil, fmt.Errorf("error instantiating route53 challenge solver: %s", err)
		}
		providers[ProviderRoute53] = p
	}

	for providerType := range providers {
		log.V(logf.DebugLevel).Info("registered DNS provider", "type", providerType)
	}

	return &Registry{providers: providers}, nil
}

// Provider returns the provider registered for the given type, or an
// UnknownProviderError.
func (r *Registry) Provider(providerType string) (Provider, error) {
	p, ok := r.providers[providerType]
	if !ok {
		return nil, &UnknownProviderError{Type: providerType}
	}
	return p, nil
}
