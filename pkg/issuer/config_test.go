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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthorityOptions(t *testing.T) {
	defaults := Defaults{
		DirectoryURL:    "https://default-ca.example.com/directory",
		Email:           "defaults@example.com",
		Telephone:       "555-0100",
		RootCertificate: "-----BEGIN CERTIFICATE-----\ndefault\n-----END CERTIFICATE-----",
	}

	tests := map[string]struct {
		raw         string
		expectedCfg *AuthorityConfig
		expectedErr string
	}{
		"should resolve every option from the document": {
			raw: `[
				{"name": "acme_url", "value": "https://ca.example.com/directory"},
				{"name": "email", "value": "admin@example.com"},
				{"name": "telephone", "value": "555-0199"},
				{"name": "certificate", "value": "-----BEGIN CERTIFICATE-----\nauthority\n-----END CERTIFICATE-----"}
			]`,
			expectedCfg: &AuthorityConfig{
				DirectoryURL:    "https://ca.example.com/directory",
				Email:           "admin@example.com",
				Telephone:       "555-0199",
				RootCertificate: "-----BEGIN CERTIFICATE-----\nauthority\n-----END CERTIFICATE-----",
			},
		},
		"should fall back to the defaults for absent options": {
			raw: `[{"name": "acme_url", "value": "https://ca.example.com/directory"}]`,
			expectedCfg: &AuthorityConfig{
				DirectoryURL:    "https://ca.example.com/directory",
				Email:           "defaults@example.com",
				Telephone:       "555-0100",
				RootCertificate: "-----BEGIN CERTIFICATE-----\ndefault\n-----END CERTIFICATE-----",
			},
		},
		"should let a present empty option clear its default": {
			raw: `[
				{"name": "acme_url", "value": "https://ca.example.com/directory"},
				{"name": "email", "value": ""},
				{"name": "telephone", "value": ""}
			]`,
			expectedCfg: &AuthorityConfig{
				DirectoryURL:    "https://ca.example.com/directory",
				RootCertificate: "-----BEGIN CERTIFICATE-----\ndefault\n-----END CERTIFICATE-----",
			},
		},
		"should ignore option names it does not recognise": {
			raw: `[
				{"name": "acme_url", "value": "https://ca.example.com/directory"},
				{"name": "favourite_colour", "value": "green"}
			]`,
			expectedCfg: &AuthorityConfig{
				DirectoryURL:    "https://ca.example.com/directory",
				Email:           "defaults@example.com",
				Telephone:       "555-0100",
				RootCertificate: "-----BEGIN CERTIFICATE-----\ndefault\n-----END CERTIFICATE-----",
			},
		},
		"should reject an acme_url that is not http(s)": {
			raw:         `[{"name": "acme_url", "value": "ftp://ca.example.com"}]`,
			expectedErr: `invalid authority configuration: acme_url "ftp://ca.example.com" is not a valid http(s) URL`,
		},
		"should reject an acme_url containing whitespace": {
			raw:         `[{"name": "acme_url", "value": "https://ca.example.com/a directory"}]`,
			expectedErr: `invalid authority configuration: acme_url "https://ca.example.com/a directory" is not a valid http(s) URL`,
		},
		"should reject an email that is not an address": {
			raw: `[
				{"name": "acme_url", "value": "https://ca.example.com/directory"},
				{"name": "email", "value": "not-an-address"}
			]`,
			expectedErr: `invalid authority configuration: email "not-an-address" is not a valid address`,
		},
		"should reject a certificate that is not PEM": {
			raw: `[
				{"name": "acme_url", "value": "https://ca.example.com/directory"},
				{"name": "certificate", "value": "garbage"}
			]`,
			expectedErr: "invalid authority configuration: certificate must be PEM encoded",
		},
		"should reject a document that is not JSON": {
			raw:         `{`,
			expectedErr: "invalid authority configuration: failed to decode options",
		},
		"should reject an empty document": {
			raw:         "",
			expectedErr: "invalid authority configuration: options not set",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := ParseAuthorityOptions([]byte(test.raw), defaults)
			if test.expectedErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.expectedErr)
				var configErr *InvalidAuthorityConfigError
				assert.ErrorAs(t, err, &configErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expectedCfg, cfg)
		})
	}
}

func TestParseAuthorityOptionsRequiresDirectoryURL(t *testing.T) {
	// No acme_url option and no deployment default.
	_, err := ParseAuthorityOptions([]byte(`[{"name": "email", "value": "admin@example.com"}]`), Defaults{})
	require.Error(t, err)
	assert.EqualError(t, err, "invalid authority configuration: acme_url is required")
}

func TestDefaultsFromEnv(t *testing.T) {
	t.Setenv("ACME_DIRECTORY_URL", "https://ca.example.com/directory")
	t.Setenv("ACME_EMAIL", "admin@example.com")
	t.Setenv("ACME_TEL", "555-0100")
	t.Setenv("ACME_ROOT", "-----BEGIN CERTIFICATE-----\nroot\n-----END CERTIFICATE-----")

	d, err := DefaultsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://ca.example.com/directory", d.DirectoryURL)
	assert.Equal(t, "admin@example.com", d.Email)
	assert.Equal(t, "555-0100", d.Telephone)
	assert.Equal(t, "-----BEGIN CERTIFICATE-----\nroot\n-----END CERTIFICATE-----", d.RootCertificate)
	assert.Equal(t, "mintward", d.UserAgent)
}
