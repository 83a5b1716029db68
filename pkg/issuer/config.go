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

package issuer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Defaults are the deployment-wide fallbacks used when an authority's
// options do not set a value themselves.
type Defaults struct {
	// DirectoryURL is the fallback ACME directory endpoint.
	DirectoryURL string `env:"ACME_DIRECTORY_URL"`
	// Email is the fallback registration contact.
	Email string `env:"ACME_EMAIL"`
	// Telephone is the fallback registration telephone number.
	Telephone string `env:"ACME_TEL"`
	// RootCertificate is the PEM root returned by CreateAuthority when the
	// authority options do not carry their own certificate.
	RootCertificate string `env:"ACME_ROOT"`
	// UserAgent is sent on every CA call.
	UserAgent string `env:"ACME_USER_AGENT" envDefault:"mintward"`
}

// DefaultsFromEnv reads the deployment defaults from the environment.
func DefaultsFromEnv() (Defaults, error) {
	var d Defaults
	if err := env.Parse(&d); err != nil {
		return Defaults{}, fmt.Errorf("failed to parse issuer defaults from environment: %s", err)
	}
	return d, nil
}

// AuthorityOption is one name/value pair of an authority's options document.
type AuthorityOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InvalidAuthorityConfigError is returned when an authority's options
// document is malformed or fails validation.
type InvalidAuthorityConfigError struct {
	Reason string
}

func (e *InvalidAuthorityConfigError) Error() string {
	return fmt.Sprintf("invalid authority configuration: %s", e.Reason)
}

// AuthorityConfig is the resolved configuration of one authority: its
// options merged over the deployment defaults.
type AuthorityConfig struct {
	DirectoryURL    string
	Email           string
	Telephone       string
	RootCertificate string
}

var (
	directoryURLRegexp = regexp.MustCompile(`^https?://\S+$`)
	emailRegexp        = regexp.MustCompile(`^[-\w.+]+@[\w-]+(\.[\w-]+)+$`)
)

const rootCertificatePrefix = "-----BEGIN CERTIFICATE-----"

// ParseAuthorityOptions decodes an authority options document, a JSON list
// of {name, value} pairs, and resolves it against the deployment defaults.
// A default applies only when the option is absent from the document, so an
// authority can explicitly clear an optional value. acme_url must resolve
// to an http(s) URL; email, when set, must be a plausible address;
// certificate, when set, must be PEM.
func ParseAuthorityOptions(raw []byte, defaults Defaults) (*AuthorityConfig, error) {
	if len(raw) == 0 {
		return nil, &InvalidAuthorityConfigError{Reason: "options not set"}
	}
	var options []AuthorityOption
	if err := json.Unmarshal(raw, &options); err != nil {
		return nil, &InvalidAuthorityConfigError{Reason: fmt.Sprintf("failed to decode options: %s", err)}
	}

	byName := map[string]string{}
	for _, option := range options {
		byName[option.Name] = option.Value
	}

	cfg := &AuthorityConfig{
		DirectoryURL:    defaults.DirectoryURL,
		Email:           defaults.Email,
		Telephone:       defaults.Telephone,
		RootCertificate: defaults.RootCertificate,
	}
	if v, ok := byName["acme_url"]; ok {
		cfg.DirectoryURL = v
	}
	if v, ok := byName["email"]; ok {
		cfg.Email = v
	}
	if v, ok := byName["telephone"]; ok {
		cfg.Telephone = v
	}
	if v, ok := byName["certificate"]; ok {
		cfg.RootCertificate = v
	}

	if cfg.DirectoryURL == "" {
		return nil, &InvalidAuthorityConfigError{Reason: "acme_url is required"}
	}
	if !directoryURLRegexp.MatchString(cfg.DirectoryURL) {
		return nil, &InvalidAuthorityConfigError{Reason: fmt.Sprintf("acme_url %q is not a valid http(s) URL", cfg.DirectoryURL)}
	}
	if cfg.Email != "" && !emailRegexp.MatchString(cfg.Email) {
		return nil, &InvalidAuthorityConfigError{Reason: fmt.Sprintf("email %q is not a valid address", cfg.Email)}
	}
	if cfg.RootCertificate != "" && !strings.HasPrefix(cfg.RootCertificate, rootCertificatePrefix) {
		return nil, &InvalidAuthorityConfigError{Reason: "certificate must be PEM encoded"}
	}
	return cfg, nil
}
