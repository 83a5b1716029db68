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

// Package dyndns implements a DNS provider for solving the DNS-01 challenge
// using Dyn Managed DNS.
package dyndns

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/nesv/go-dynect/dynect"

	"github.com/mintward/mintward/pkg/issuer/acme/dns/util"
	logf "github.com/mintward/mintward/pkg/logs"
)

const (
	dynTTL = "60"

	// Generous to cope with spikes in propagation times.
	propagationTimeout  = 120 * time.Second
	propagationInterval = 2 * time.Second
)

// DNSProvider implements the dns.Provider interface for zones hosted on Dyn
// Managed DNS. Dyn sessions are not scoped per account number, so the account
// number carried by a challenge is ignored.
type DNSProvider struct {
	client           *dynect.Client
	zoneName         string
	dns01Nameservers []string
}

// ZonePublishRequest is missing from dynect but the notes field is a nice
// place to record some internal info during commit
type ZonePublishRequest struct {
	Publish bool   `json:"publish"`
	Notes   string `json:"notes"`
}

type ZonePublishResponse struct {
	dynect.ResponseBlock
	Data map[string]interface{} `json:"data"`
}

// NewDNSProviderCredentials returns a DNSProvider instance configured for the
// Dyn.com DNS service using static credentials from its parameters. It opens a
// Dyn API session straight away. An empty zoneName makes the provider discover
// the zone of each record from the DNS tree instead.
func NewDNSProviderCredentials(customerName, userName, password, zoneName string, dns01Nameservers []string) (*DNSProvider, error) {
	if customerName == "" || userName == "" || password == "" {
		return nil, fmt.Errorf("no Dyn credential has been given (a customer name, user name and password are all required)")
	}

	client := dynect.NewClient(customerName)
	var resp dynect.LoginResponse
	req := dynect.LoginBlock{
		Username:     userName,
		Password:     password,
		CustomerName: customerName,
	}
	if err := client.Do("POST", "Session", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create Dyn session: %s", err)
	}
	client.Token = resp.Data.Token

	return &DNSProvider{
		client:           client,
		zoneName:         zoneName,
		dns01Nameservers: dns01Nameservers,
	}, nil
}

// CreateTXTRecord creates a TXT record to fulfil the dns-01 challenge and
// publishes the zone. The record's REST path doubles as the change ID.
func (c *DNSProvider) CreateTXTRecord(ctx context.Context, fqdn, value, accountNumber string) (string, error) {
	log := logf.FromContext(ctx)

	zone, err := c.getHostedZoneName(fqdn)
	if err != nil {
		return "", err
	}

	link := recordLink(zone, fqdn)
	record := dynect.RecordRequest{
		TTL:   dynTTL,
		RData: dynect.DataBlock{TxtData: value},
	}

	response := dynect.RecordResponse{}
	if err := c.client.Do("POST", link, record, &response); err != nil {
		return "", fmt.Errorf("failed to create Dyn record %s: %s", link, err)
	}
	log.V(logf.DebugLevel).Info("created Dyn record", "record", link)

	if err := c.commit(ctx, zone); err != nil {
		return "", err
	}

	// Give the zone a moment to settle after publishing.
	time.Sleep(1300 * time.Millisecond)

	return link, nil
}

// DeleteTXTRecord removes the TXT record matching the specified parameters and
// publishes the zone. The record path is rebuilt from the FQDN, so the change
// ID from an earlier process is not needed.
func (c *DNSProvider) DeleteTXTRecord(ctx context.Context, changeID, accountNumber, fqdn, value string) error {
	log := logf.FromContext(ctx)

	zone, err := c.getHostedZoneName(fqdn)
	if err != nil {
		return err
	}

	link := recordLink(zone, fqdn)
	response := dynect.RecordResponse{}
	if err := c.client.Do("DELETE", link, nil, &response); err != nil {
		return fmt.Errorf("failed to delete Dyn record %s: %s", link, err)
	}
	log.V(logf.DebugLevel).Info("deleted Dyn record", "record", link)

	return c.commit(ctx, zone)
}

// WaitForPropagation blocks until the TXT record behind changeID is visible on
// the configured nameservers. Dyn has no change handle to poll, so the record
// name is parsed back out of the change ID and queried directly.
func (c *DNSProvider) WaitForPropagation(ctx context.Context, changeID, accountNumber string) error {
	fqdn, err := fqdnFromRecordLink(changeID)
	if err != nil {
		return err
	}

	return util.WaitFor(ctx, propagationTimeout, propagationInterval, func() (bool, error) {
		in, err := util.DNSQuery(fqdn, dns.TypeTXT, c.dns01Nameservers, true)
		if err != nil {
			return false, err
		}
		if in.Rcode != dns.RcodeSuccess {
			return false, fmt.Errorf("TXT record %s not present: %s", fqdn, dns.RcodeToString[in.Rcode])
		}
		return len(in.Answer) > 0, nil
	})
}

// commit publishes all pending changes to the zone.
func (c *DNSProvider) commit(ctx context.Context, zone string) error {
	log := logf.FromContext(ctx)

	hostName, err := os.Hostname()
	if err != nil {
		hostName = "unknown-host"
	}
	zonePublish := ZonePublishRequest{
		Publish: true,
		Notes:   fmt.Sprintf("Change by mintward@%s on %s", hostName, time.Now().Format(time.RFC3339)),
	}

	response := ZonePublishResponse{}
	if err := c.client.Do("PUT", fmt.Sprintf("Zone/%s/", zone), &zonePublish, &response); err != nil {
		return fmt.Errorf("failed to publish Dyn zone %s: %s", zone, err)
	}
	log.V(logf.DebugLevel).Info("published Dyn zone", "zone", zone)

	return nil
}

func (c *DNSProvider) getHostedZoneName(fqdn string) (string, error) {
	if c.zoneName != "" {
		return c.zoneName, nil
	}
	zone, err := util.FindZoneByFqdn(fqdn, c.dns01Nameservers)
	if err != nil {
		return "", err
	}
	return util.UnFqdn(zone), nil
}

// recordLink builds the REST path of the TXT record for fqdn in zone, e.g.
// "TXTRecord/example.com/_acme-challenge.example.com/".
func recordLink(zone, fqdn string) string {
	return fmt.Sprintf("%sRecord/%s/%s/", "TXT", zone, util.UnFqdn(fqdn))
}

func fqdnFromRecordLink(changeID string) (string, error) {
	parts := strings.Split(changeID, "/")
	if len(parts) < 3 || parts[0] != "TXTRecord" || parts[2] == "" {
		return "", fmt.Errorf("malformed Dyn change ID %q", changeID)
	}
	return util.ToFqdn(parts[2]), nil
}
