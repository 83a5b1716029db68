// +skip_license_check

/*
This file contains portions of code directly taken from the 'xenolf/lego' project.
A copy of the license for this code can be found in the file named LICENSE in
this directory.
*/

package util

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// challengeRecordTTL is the TTL suggested for provisioned challenge records.
const challengeRecordTTL = 60

// ChallengeRecord returns the DNS TXT record which will fulfill the dns-01
// challenge for the given domain. Wildcard domains validate at the record of
// their base name. When followCNAME is set, an existing CNAME at the
// challenge name is chased so the record is created where the CA will
// actually look.
func ChallengeRecord(domain, value string, nameservers []string, followCNAMEs bool) (fqdn string, v string, ttl int, err error) {
	fqdn = fmt.Sprintf("_acme-challenge.%s.", strings.TrimPrefix(domain, "*."))

	if followCNAMEs {
		r, err := DNSQuery(fqdn, dns.TypeCNAME, nameservers, true)
		if err != nil {
			return "", "", 0, fmt.Errorf("failed to check for CNAME at %q: %v", fqdn, err)
		}
		if r.Rcode == dns.RcodeSuccess {
			fqdn = followCNAME(r, fqdn)
		}
	}

	return fqdn, value, challengeRecordTTL, nil
}
