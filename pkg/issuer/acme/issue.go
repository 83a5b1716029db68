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
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	acmeapi "golang.org/x/crypto/acme"

	logf "github.com/mintward/mintward/pkg/logs"
)

// ErrIssuancePollTimeout is returned when the order does not reach a final
// state within the configured poll attempts.
var ErrIssuancePollTimeout = errors.New("timed out waiting for certificate issuance")

// Bundle is an issued certificate: the PEM leaf and the newline-joined PEM
// links of the remaining chain.
type Bundle struct {
	Certificate []byte
	Chain       []byte
}

// RequestCertificate submits the CSR against the validated order and polls
// until the CA issues the certificate. The poll runs at most MaxPollAttempts
// times, PollInterval apart.
func (s *Solver) RequestCertificate(ctx context.Context, set *ChallengeSet, csrPEM []byte) (*Bundle, error) {
	log := logf.FromContext(ctx)

	csrDER, err := parseCSR(csrPEM)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.opts.MaxPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.PollInterval):
			}
		}

		order, err := s.client.GetOrder(ctx, set.Order.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch order %s: %v", set.Order.URI, err)
		}
		log.V(logf.DebugLevel).Info("polled order", "url", order.URI, "status", order.Status)

		switch order.Status {
		case acmeapi.StatusReady:
			der, _, err := s.client.CreateOrderCert(ctx, order.FinalizeURL, csrDER, true)
			if err != nil {
				return nil, fmt.Errorf("failed to finalize order %s: %v", order.URI, err)
			}
			return bundleFromDER(der)
		case acmeapi.StatusValid:
			// Already finalized, e.g. by an earlier interrupted attempt.
			der, err := s.client.FetchCert(ctx, order.CertURL, true)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch certificate for order %s: %v", order.URI, err)
			}
			return bundleFromDER(der)
		case acmeapi.StatusInvalid:
			return nil, fmt.Errorf("order %s is invalid: %v", order.URI, order.Error)
		}
	}

	return nil, ErrIssuancePollTimeout
}

// parseCSR decodes the PEM certificate request and returns its DER bytes.
func parseCSR(csrPEM []byte) ([]byte, error) {
	block, _ := pem.Decode(csrPEM)
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		return nil, fmt.Errorf("failed to decode certificate request PEM")
	}
	if _, err := x509.ParseCertificateRequest(block.Bytes); err != nil {
		return nil, fmt.Errorf("failed to parse certificate request: %v", err)
	}
	return block.Bytes, nil
}

// bundleFromDER serializes the chain returned by the CA: the first link is
// the leaf, the rest become the chain.
func bundleFromDER(der [][]byte) (*Bundle, error) {
	if len(der) == 0 {
		return nil, fmt.Errorf("CA returned an empty certificate chain")
	}

	links := make([]string, 0, len(der))
	for _, link := range der {
		block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: link})
		links = append(links, strings.TrimSpace(string(block)))
	}

	return &Bundle{
		Certificate: []byte(links[0]),
		Chain:       []byte(strings.Join(links[1:], "\n")),
	}, nil
}
