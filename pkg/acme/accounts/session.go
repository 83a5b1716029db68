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

// Package accounts establishes authenticated ACME sessions: a fresh account
// key, directory discovery and account registration with terms-of-service
// acceptance.
package accounts

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	acmeapi "golang.org/x/crypto/acme"

	acmecl "github.com/mintward/mintward/pkg/acme/client"
	logf "github.com/mintward/mintward/pkg/logs"
	"github.com/mintward/mintward/pkg/metrics"
)

const (
	// accountKeyBits is the size of the generated ACME account key.
	accountKeyBits = 2048
)

// ErrCAUnreachable is returned (wrapped) when the ACME directory cannot be
// fetched from the configured endpoint.
var ErrCAUnreachable = errors.New("the ACME directory is unreachable")

// RegistrationError is returned when the CA refuses the account
// registration.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register acme account: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Config carries everything needed to establish a session against one ACME
// authority.
type Config struct {
	// DirectoryURL is the ACME directory endpoint of the authority.
	DirectoryURL string
	// Email is attached to the registration as a mailto contact when set.
	Email string
	// UserAgent is sent on every CA call.
	UserAgent string
	// SkipTLSVerify disables TLS certificate verification on the directory
	// endpoint. Only useful against private test CAs.
	SkipTLSVerify bool

	// Metrics instruments the underlying HTTP client when set.
	Metrics *metrics.Metrics
	// NewClient overrides construction of the ACME client. Used by tests.
	NewClient NewClientFunc
}

// Session is an authenticated ACME session. The account key is generated per
// session and never persisted; callers that want to amortise registration
// across operations cache whole sessions (see Registry).
type Session struct {
	Client     acmecl.Interface
	Account    *acmeapi.Account
	PrivateKey *rsa.PrivateKey
}

// NewSession generates an account key, discovers the directory and registers
// an account with the CA, accepting its terms of service. An account that
// already exists for the key is fetched instead.
func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	log := logf.FromContext(ctx, "accounts").WithValues(logf.AuthorityURLKey, cfg.DirectoryURL)

	if cfg.DirectoryURL == "" {
		return nil, fmt.Errorf("acme directory URL must be set")
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, accountKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate acme account key: %v", err)
	}

	newClient := cfg.NewClient
	if newClient == nil {
		newClient = NewClient
	}
	cl := newClient(BuildHTTPClient(cfg.Metrics, cfg.SkipTLSVerify), cfg, privateKey)

	if _, err := cl.Discover(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCAUnreachable, err)
	}
	log.V(logf.DebugLevel).Info("discovered acme directory")

	acc := &acmeapi.Account{}
	if cfg.Email != "" {
		acc.Contact = []string{fmt.Sprintf("mailto:%s", strings.ToLower(cfg.Email))}
	}

	registered, err := cl.Register(ctx, acc, acmeapi.AcceptTOS)
	if err != nil {
		if !errors.Is(err, acmeapi.ErrAccountAlreadyExists) {
			return nil, &RegistrationError{Err: err}
		}
		registered, err = cl.GetReg(ctx, "")
		if err != nil {
			return nil, &RegistrationError{Err: err}
		}
	}
	log.V(logf.InfoLevel).Info("registered acme account", "uri", registered.URI)

	return &Session{
		Client:     cl,
		Account:    registered,
		PrivateKey: privateKey,
	}, nil
}
