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

package accounts

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
)

// ErrNotFound is returned by GetSession if there is no session cached for
// the authority.
var ErrNotFound = errors.New("no ACME session cached for authority")

// A Registry provides a means to store and access established ACME sessions,
// keyed by authority fingerprint. Deployments that issue many certificates
// against the same authority use it to amortise account registration; each
// issuance operation still works against its own exclusive state.
type Registry interface {
	// AddSession stores a session for the authority fingerprint, replacing
	// any previous one.
	AddSession(fingerprint string, s *Session)

	// RemoveSession drops the cached session for the fingerprint, if any.
	RemoveSession(fingerprint string)

	// GetSession fetches a previously stored session.
	// If no session is found, ErrNotFound is returned.
	GetSession(fingerprint string) (*Session, error)

	// ListSessions returns all cached sessions by fingerprint.
	ListSessions() map[string]*Session
}

// NewDefaultRegistry returns a new default instantiation of a session
// registry.
func NewDefaultRegistry() Registry {
	return &registry{
		sessions: make(map[string]*Session),
	}
}

// Implementation of the Registry interface
type registry struct {
	lock sync.RWMutex

	// a map of authority fingerprint to established session
	sessions map[string]*Session
}

func (r *registry) AddSession(fingerprint string, s *Session) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[fingerprint] = s
}

func (r *registry) RemoveSession(fingerprint string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.sessions, fingerprint)
}

func (r *registry) GetSession(fingerprint string) (*Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if s, ok := r.sessions[fingerprint]; ok {
		return s, nil
	}
	return nil, ErrNotFound
}

func (r *registry) ListSessions() map[string]*Session {
	r.lock.RLock()
	defer r.lock.RUnlock()
	out := make(map[string]*Session, len(r.sessions))
	for k, v := range r.sessions {
		out[k] = v
	}
	return out
}

// Fingerprint derives a stable registry key for an authority configuration.
// Two configurations that would register the same account map to the same
// fingerprint.
func Fingerprint(cfg Config) string {
	sum := sha256.Sum256([]byte(cfg.DirectoryURL + "\x00" + strings.ToLower(cfg.Email)))
	return base64.StdEncoding.EncodeToString(sum[:])
}
