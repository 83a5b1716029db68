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

package util

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"time"
)

const (
	maxDelay   = 3 * time.Second
	maxRetries = 5
)

// RetryBackoff is a backoff policy for the ACME HTTP client that retries
// badNonce rejections only. Every other failure surfaces to the caller
// unretried.
func RetryBackoff(n int, r *http.Request, resp *http.Response) time.Duration {
	// RFC 8555 names the error urn:ietf:params:acme:error:badNonce, but the
	// response body is closed by the time this runs. The status code is the
	// next best signal: stale nonces are rejected with 400.
	if resp.StatusCode != http.StatusBadRequest {
		return -1
	}

	// this many nonce mismatches in a row means something else is wrong
	if n > maxRetries {
		return -1
	}

	var jitter time.Duration
	if x, err := rand.Int(rand.Reader, big.NewInt(1000)); err == nil {
		jitter = (1 + time.Duration(x.Int64())) * time.Millisecond
	}

	exponent := uint(0)
	if n > 0 {
		exponent = uint(n - 1)
	}

	d := time.Duration(1<<exponent)*time.Second + jitter
	if d > maxDelay {
		return maxDelay
	}
	return d
}
