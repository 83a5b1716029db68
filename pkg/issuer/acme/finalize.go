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
	"fmt"

	"github.com/mintward/mintward/pkg/issuer/acme/dns/util"
	logf "github.com/mintward/mintward/pkg/logs"
)

// PropagationTimeoutError is returned when a record's propagation deadline
// expires before the provider reports the change visible.
type PropagationTimeoutError struct {
	Host string
	Err  error
}

func (e *PropagationTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for DNS propagation for %s: %v", e.Host, e.Err)
}

func (e *PropagationTimeoutError) Unwrap() error {
	return e.Err
}

// LocalVerificationError is returned when the computed challenge response is
// not observed in DNS after bounded re-checks. The challenge is not
// submitted to the CA in that case.
type LocalVerificationError struct {
	Host string
	FQDN string
}

func (e *LocalVerificationError) Error() string {
	return fmt.Sprintf("challenge response for %s was not observed at %s", e.Host, e.FQDN)
}

// Finalize waits for propagation of every record in the set, verifies each
// record against DNS and submits the challenge answers to the CA. Whatever
// the outcome, every record's TXT entry is deleted before Finalize returns;
// the first verification or submission error is returned after cleanup
// completes.
func (s *Solver) Finalize(ctx context.Context, set *ChallengeSet) error {
	// Cleanup must run even when ctx is already done.
	defer s.CleanupRecords(context.WithoutCancel(ctx), set.Records)

	for i := range set.Records {
		if err := s.completeDNSChallenge(ctx, &set.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) completeDNSChallenge(ctx context.Context, record *AuthorizationRecord) error {
	log := logf.FromContext(ctx).WithValues("host", record.Host)
	dbg := log.V(logf.DebugLevel)

	dbg.Info("waiting for DNS propagation", "fqdn", record.FQDN)
	waitCtx, cancel := context.WithTimeout(ctx, s.opts.PropagationDeadline)
	err := s.provider.WaitForPropagation(waitCtx, record.ChangeID, s.accountNumber)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return &PropagationTimeoutError{Host: record.Host, Err: err}
		}
		return fmt.Errorf("failed waiting for DNS propagation for %s: %v", record.Host, err)
	}

	dbg.Info("verifying challenge record", "fqdn", record.FQDN)
	err = util.WaitFor(ctx, s.opts.VerificationTimeout, s.opts.VerificationInterval, func() (bool, error) {
		return util.PreCheckDNS(record.FQDN, record.Value, s.opts.DNS01Nameservers, !s.opts.RecursiveNameserversOnly)
	})
	if err != nil {
		return &LocalVerificationError{Host: record.Host, FQDN: record.FQDN}
	}

	dbg.Info("accepting challenge")
	if _, err := s.client.Accept(ctx, record.Challenge); err != nil {
		return fmt.Errorf("failed to submit challenge answer for %s: %v", record.Host, err)
	}
	if _, err := s.client.WaitAuthorization(ctx, record.AuthzURL); err != nil {
		return fmt.Errorf("failed to validate authorization for %s: %v", record.Host, err)
	}
	log.V(logf.InfoLevel).Info("authorization validated")

	return nil
}
