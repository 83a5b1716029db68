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

package middleware

import (
	"context"

	"golang.org/x/crypto/acme"

	"github.com/mintward/mintward/pkg/acme/client"
	logf "github.com/mintward/mintward/pkg/logs"
)

func NewLogger(baseCl client.Interface) client.Interface {
	return &Logger{baseCl: baseCl}
}

// Logger is a klog based logging middleware for an ACME client
type Logger struct {
	baseCl client.Interface
}

var _ client.Interface = &Logger{}

func (l *Logger) AuthorizeOrder(ctx context.Context, id []acme.AuthzID, opt ...acme.OrderOption) (*acme.Order, error) {
	logf.V(logf.DebugLevel).Infof("Calling AuthorizeOrder")
	return l.baseCl.AuthorizeOrder(ctx, id, opt...)
}

func (l *Logger) GetOrder(ctx context.Context, url string) (*acme.Order, error) {
	logf.V(logf.DebugLevel).Infof("Calling GetOrder")
	return l.baseCl.GetOrder(ctx, url)
}

func (l *Logger) FetchCert(ctx context.Context, url string, bundle bool) ([][]byte, error) {
	logf.V(logf.DebugLevel).Infof("Calling FetchCert")
	return l.baseCl.FetchCert(ctx, url, bundle)
}

func (l *Logger) WaitOrder(ctx context.Context, url string) (*acme.Order, error) {
	logf.V(logf.DebugLevel).Infof("Calling WaitOrder")
	return l.baseCl.WaitOrder(ctx, url)
}

func (l *Logger) CreateOrderCert(ctx context.Context, finalizeURL string, csr []byte, bundle bool) (der [][]byte, certURL string, err error) {
	logf.V(logf.DebugLevel).Infof("Calling CreateOrderCert")
	return l.baseCl.CreateOrderCert(ctx, finalizeURL, csr, bundle)
}

func (l *Logger) Accept(ctx context.Context, chal *acme.Challenge) (*acme.Challenge, error) {
	logf.V(logf.DebugLevel).Infof("Calling Accept")
	return l.baseCl.Accept(ctx, chal)
}

func (l *Logger) GetChallenge(ctx context.Context, url string) (*acme.Challenge, error) {
	logf.V(logf.DebugLevel).Infof("Calling GetChallenge")
	return l.baseCl.GetChallenge(ctx, url)
}

func (l *Logger) GetAuthorization(ctx context.Context, url string) (*acme.Authorization, error) {
	logf.V(logf.DebugLevel).Infof("Calling GetAuthorization")
	return l.baseCl.GetAuthorization(ctx, url)
}

func (l *Logger) WaitAuthorization(ctx context.Context, url string) (*acme.Authorization, error) {
	logf.V(logf.DebugLevel).Infof("Calling WaitAuthorization")
	return l.baseCl.WaitAuthorization(ctx, url)
}

func (l *Logger) Register(ctx context.Context, a *acme.Account, prompt func(tosURL string) bool) (*acme.Account, error) {
	logf.V(logf.DebugLevel).Infof("Calling Register")
	return l.baseCl.Register(ctx, a, prompt)
}

func (l *Logger) GetReg(ctx context.Context, url string) (*acme.Account, error) {
	logf.V(logf.DebugLevel).Infof("Calling GetReg")
	return l.baseCl.GetReg(ctx, url)
}

func (l *Logger) DNS01ChallengeRecord(token string) (string, error) {
	logf.V(logf.DebugLevel).Infof("Calling DNS01ChallengeRecord")
	return l.baseCl.DNS01ChallengeRecord(token)
}

func (l *Logger) Discover(ctx context.Context) (acme.Directory, error) {
	logf.V(logf.DebugLevel).Infof("Calling Discover")
	return l.baseCl.Discover(ctx)
}

func (l *Logger) UpdateReg(ctx context.Context, a *acme.Account) (*acme.Account, error) {
	logf.V(logf.DebugLevel).Infof("Calling UpdateReg")
	return l.baseCl.UpdateReg(ctx, a)
}
