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

// Package server runs a local authoritative nameserver that tests can point
// propagation checks and zone lookups at instead of the public DNS.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"

	logf "github.com/mintward/mintward/pkg/logs"
)

const (
	defaultTTL = 60
)

// BasicServer is a DNS server which is authoritative for the configured
// zones. It serves SOA, NS, TXT and CNAME responses from an in-memory record
// set that tests mutate directly.
type BasicServer struct {
	T *testing.T

	// Zones is a list of DNS zones that this server should accept queries
	// for, in FQDN form.
	Zones []string

	// Handler is an optional dns.Handler which, when set, replaces the
	// built-in record set handler entirely.
	Handler dns.Handler

	lock         sync.Mutex
	txtRecords   map[string][]string
	cnameRecords map[string]string

	listenAddr string
	server     *dns.Server
}

// Run starts the test DNS server, binding to a random port on 127.0.0.1
func (b *BasicServer) Run(ctx context.Context) error {
	return b.RunWithAddress(ctx, "127.0.0.1:0")
}

// RunWithAddress starts the test DNS server using the specified listen address.
func (b *BasicServer) RunWithAddress(ctx context.Context, listenAddr string) error {
	log := logf.FromContext(ctx, "dnsBasicServer")

	if listenAddr == "" {
		return fmt.Errorf("listen address must be provided")
	}

	pc, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return err
	}
	b.listenAddr = pc.LocalAddr().String()
	log = log.WithValues("address", b.listenAddr)
	log.V(logf.InfoLevel).Info("listening on UDP port")

	b.txtRecords = make(map[string][]string)
	b.cnameRecords = make(map[string]string)

	b.server = &dns.Server{PacketConn: pc, ReadTimeout: time.Hour, WriteTimeout: time.Hour}
	if b.Handler == nil {
		b.Handler = b
	}
	b.server.Handler = b.Handler

	// Start the DNS server in a separate goroutine and wait for it to start
	waitLock := sync.Mutex{}
	waitLock.Lock()
	b.server.NotifyStartedFunc = waitLock.Unlock
	go func() {
		log.V(logf.DebugLevel).Info("starting DNS server")
		if err := b.server.ActivateAndServe(); err != nil {
			b.T.Errorf("failed to start DNS server: %v", err)
		}
		log.V(logf.DebugLevel).Info("DNS server exited")
	}()
	waitLock.Lock()
	defer waitLock.Unlock()

	return nil
}

func (b *BasicServer) ListenAddr() string {
	return b.listenAddr
}

func (b *BasicServer) Shutdown() error {
	return b.server.Shutdown()
}

// SetTXT sets the TXT record values served for the given fqdn, replacing any
// existing values.
func (b *BasicServer) SetTXT(fqdn string, values ...string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.txtRecords[fqdn] = values
}

// DeleteTXT removes all TXT record values for the given fqdn.
func (b *BasicServer) DeleteTXT(fqdn string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.txtRecords, fqdn)
}

// TXT returns a snapshot of the TXT record values currently served for the
// given fqdn.
func (b *BasicServer) TXT(fqdn string) []string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]string(nil), b.txtRecords[fqdn]...)
}

// SetCNAME points the given fqdn at target. Queries of any type for fqdn
// will answer with the CNAME.
func (b *BasicServer) SetCNAME(fqdn, target string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.cnameRecords[fqdn] = target
}

// ServeDNS implements github.com/miekg/dns.Handler
func (b *BasicServer) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	b.lock.Lock()
	defer b.lock.Unlock()

	m := new(dns.Msg)
	m.SetReply(req)
	defer func() {
		if err := w.WriteMsg(m); err != nil {
			b.T.Errorf("failed to write response: %v", err)
		}
	}()

	if len(req.Question) == 0 {
		m.Rcode = dns.RcodeFormatError
		return
	}

	question := req.Question[0].Name
	zone := b.zoneForFQDN(question)
	if zone == "" {
		m.Rcode = dns.RcodeNameError
		return
	}

	if target, ok := b.cnameRecords[question]; ok {
		cnameRR, _ := dns.NewRR(fmt.Sprintf("%s %d IN CNAME %s", question, defaultTTL, target))
		m.Answer = append(m.Answer, cnameRR)
		if req.Question[0].Qtype == dns.TypeTXT {
			for _, val := range b.txtRecords[target] {
				txtRR, _ := dns.NewRR(fmt.Sprintf("%s %d IN TXT %q", target, defaultTTL, val))
				m.Answer = append(m.Answer, txtRR)
			}
		}
		return
	}

	switch req.Question[0].Qtype {
	case dns.TypeSOA:
		// The SOA is deliberately not the first record in the answer
		// section.
		nsRR, _ := dns.NewRR(fmt.Sprintf("%s %d IN NS ns1.%s", zone, defaultTTL, zone))
		soaRR, _ := dns.NewRR(fmt.Sprintf("%s %d IN SOA ns1.%s admin.%s 2016022801 28800 7200 2419200 1200", zone, defaultTTL, zone, zone))
		m.Answer = []dns.RR{nsRR, soaRR}
	case dns.TypeNS:
		ns1RR, _ := dns.NewRR(fmt.Sprintf("%s %d IN NS ns1.%s", zone, defaultTTL, zone))
		ns2RR, _ := dns.NewRR(fmt.Sprintf("%s %d IN NS ns2.%s", zone, defaultTTL, zone))
		m.Answer = []dns.RR{ns1RR, ns2RR}
	case dns.TypeTXT:
		for _, val := range b.txtRecords[question] {
			txtRR, _ := dns.NewRR(fmt.Sprintf("%s %d IN TXT %q", question, defaultTTL, val))
			m.Answer = append(m.Answer, txtRR)
		}
	}
}

func (b *BasicServer) zoneForFQDN(s string) string {
	for _, z := range b.Zones {
		if dns.IsSubDomain(z, s) {
			return z
		}
	}
	return ""
}
