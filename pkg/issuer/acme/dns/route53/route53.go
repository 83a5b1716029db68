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

/*
This file contains portions of code directly taken from the 'xenolf/lego' project.
A copy of the license for this code can be found in the file named LICENSE in
this directory.
*/

// Package route53 implements a DNS provider for solving the DNS-01 challenge
// using AWS Route 53 DNS.
//
// Records may be managed across many AWS accounts: when a challenge carries
// an account number the provider assumes the configured IAM role in that
// account before touching any record sets.
package route53

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/logging"
	"github.com/aws/smithy-go/middleware"
	"github.com/go-logr/logr"

	"github.com/mintward/mintward/pkg/issuer/acme/dns/util"
	logf "github.com/mintward/mintward/pkg/logs"
)

const (
	route53TTL = 10

	propagationTimeout  = 120 * time.Second
	propagationInterval = 4 * time.Second
)

// StsClient is the subset of the STS API used to assume per-account roles.
type StsClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// DNSProvider implements the dns.Provider interface for Route 53 hosted
// zones.
type DNSProvider struct {
	dns01Nameservers []string
	session          *sessionProvider
	hostedZoneID     string
	userAgent        string

	mu      sync.Mutex
	clients map[string]*route53.Client
}

type sessionProvider struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	// Role is the name of the IAM role assumed in the account a challenge
	// belongs to, e.g. a Role of "mintward" and an account number of "123"
	// yield arn:aws:iam::123:role/mintward.
	Role        string
	StsProvider func(aws.Config) StsClient
	userAgent   string
	log         logr.Logger
}

type stsWrapper struct {
	wrapped *sts.Client
}

func (o *stsWrapper) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	out, err := o.wrapped.AssumeRole(ctx, params, optFns...)
	if err != nil {
		err = removeReqID(err)
	}
	return out, err
}

var _ stscreds.AssumeRoleAPIClient = &stsWrapper{}

func defaultSTSProvider(cfg aws.Config) StsClient {
	return &stsWrapper{wrapped: sts.NewFromConfig(cfg)}
}

// GetSession loads an AWS SDK for Go V2 configuration for the Route 53
// client. Credentials come from the static key pair when one is configured,
// otherwise from the standardized credential chain. When accountNumber is
// not empty the configured role is assumed in that account.
func (d *sessionProvider) GetSession(ctx context.Context, accountNumber string) (aws.Config, error) {
	log := d.log
	optFns := []func(*config.LoadOptions) error{
		// Print AWS API requests but only at debug level
		config.WithLogger(logging.LoggerFunc(func(classification logging.Classification, format string, v ...interface{}) {
			log := log.WithValues("aws-classification", classification)
			if classification == logging.Debug {
				log = log.V(logf.DebugLevel)
			}
			logf.WithInfof(log).Infof(format, v...)
		})),
		config.WithClientLogMode(aws.LogDeprecatedUsage | aws.LogRequest | aws.LogResponseWithBody),
		config.WithLogConfigurationWarnings(true),
		// Append the mintward user-agent string to all AWS API requests
		config.WithAPIOptions(
			[]func(*middleware.Stack) error{
				func(stack *middleware.Stack) error {
					return awsmiddleware.AddUserAgentKeyValue("mintward", d.userAgent)(stack)
				},
			},
		),
	}

	if d.Region != "" {
		optFns = append(optFns, config.WithRegion(d.Region))
	}

	if d.AccessKeyID != "" && d.SecretAccessKey != "" {
		log.V(logf.DebugLevel).Info("Using static credentials provider. Ambient credentials will be ignored.")
		optFns = append(
			optFns,
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(d.AccessKeyID, d.SecretAccessKey, ""),
			),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to create aws config: %s", err)
	}

	if accountNumber == "" {
		return cfg, nil
	}
	if d.Role == "" {
		return aws.Config{}, fmt.Errorf("unable to assume a role in account %s: no role name configured", accountNumber)
	}

	roleArn := fmt.Sprintf("arn:aws:iam::%s:role/%s", accountNumber, d.Role)
	log.V(logf.DebugLevel).Info("Using assumed role", "role", roleArn, logf.AccountNumberKey, accountNumber)
	stsClient := d.StsProvider(cfg)
	cfg.Credentials = aws.NewCredentialsCache(stscreds.NewAssumeRoleProvider(stsClient, roleArn))

	return cfg, nil
}

func newSessionProvider(accessKeyID, secretAccessKey, region, role, userAgent string) *sessionProvider {
	return &sessionProvider{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		Region:          region,
		Role:            role,
		StsProvider:     defaultSTSProvider,
		userAgent:       userAgent,
		log:             logf.Log.WithName("route53-session"),
	}
}

// NewDNSProvider returns a DNSProvider instance configured for the AWS
// Route 53 service using static credentials from its parameters or, if
// they're unset, credentials from the environment.
func NewDNSProvider(
	ctx context.Context,
	accessKeyID, secretAccessKey, hostedZoneID, region, role string,
	dns01Nameservers []string,
	userAgent string,
) (*DNSProvider, error) {
	provider := newSessionProvider(accessKeyID, secretAccessKey, region, role, userAgent)

	cfg, err := provider.GetSession(ctx, "")
	if err != nil {
		return nil, err
	}

	return &DNSProvider{
		session:          provider,
		clients:          map[string]*route53.Client{"": route53.NewFromConfig(cfg)},
		hostedZoneID:     hostedZoneID,
		dns01Nameservers: dns01Nameservers,
		userAgent:        userAgent,
	}, nil
}

// clientForAccount returns a Route 53 client scoped to the given account
// number, assuming the configured role on first use. Clients are cached per
// account.
func (r *DNSProvider) clientForAccount(ctx context.Context, accountNumber string) (*route53.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[accountNumber]; ok {
		return client, nil
	}

	cfg, err := r.session.GetSession(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	client := route53.NewFromConfig(cfg)
	r.clients[accountNumber] = client

	return client, nil
}

// CreateTXTRecord upserts a TXT record with the given value and returns the
// Route 53 change ID for it.
func (r *DNSProvider) CreateTXTRecord(ctx context.Context, fqdn, value, accountNumber string) (string, error) {
	client, err := r.clientForAccount(ctx, accountNumber)
	if err != nil {
		return "", err
	}
	value = `"` + value + `"`
	return r.changeRecord(ctx, client, route53types.ChangeActionUpsert, fqdn, value, route53TTL)
}

// DeleteTXTRecord removes the TXT record matching the specified parameters.
// Deleting a record which is already gone is not an error.
func (r *DNSProvider) DeleteTXTRecord(ctx context.Context, changeID, accountNumber, fqdn, value string) (err error) {
	client, err := r.clientForAccount(ctx, accountNumber)
	if err != nil {
		return err
	}
	value = `"` + value + `"`
	_, err = r.changeRecord(ctx, client, route53types.ChangeActionDelete, fqdn, value, route53TTL)
	return err
}

// WaitForPropagation polls the status of the given change until Route 53
// reports it INSYNC, meaning it has been applied to all authoritative
// nameservers.
func (r *DNSProvider) WaitForPropagation(ctx context.Context, changeID, accountNumber string) error {
	client, err := r.clientForAccount(ctx, accountNumber)
	if err != nil {
		return err
	}

	return util.WaitFor(ctx, propagationTimeout, propagationInterval, func() (bool, error) {
		reqParams := &route53.GetChangeInput{
			Id: aws.String(changeID),
		}
		resp, err := client.GetChange(ctx, reqParams)
		if err != nil {
			return false, fmt.Errorf("failed to query Route 53 change status: %v", removeReqID(err))
		}
		if resp.ChangeInfo.Status == route53types.ChangeStatusInsync {
			return true, nil
		}
		return false, nil
	})
}

func (r *DNSProvider) changeRecord(ctx context.Context, client *route53.Client, action route53types.ChangeAction, fqdn, value string, ttl int) (string, error) {
	log := logf.FromContext(ctx)
	hostedZoneID, err := r.getHostedZoneID(ctx, client, fqdn)
	if err != nil {
		return "", fmt.Errorf("failed to determine Route 53 hosted zone ID: %v", err)
	}

	recordSet := newTXTRecordSet(fqdn, value, ttl)
	reqParams := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(hostedZoneID),
		ChangeBatch: &route53types.ChangeBatch{
			Comment: aws.String("Managed by mintward"),
			Changes: []route53types.Change{
				{
					Action:            action,
					ResourceRecordSet: recordSet,
				},
			},
		},
	}

	resp, err := client.ChangeResourceRecordSets(ctx, reqParams)
	if err != nil {
		var invalidChangeBatch *route53types.InvalidChangeBatch
		if errors.As(err, &invalidChangeBatch) && action == route53types.ChangeActionDelete {
			log.V(logf.DebugLevel).WithValues("error", err).Info("ignoring InvalidChangeBatch error")
			// If we try to delete something and get a 'InvalidChangeBatch' that
			// means it's already deleted, no need to consider it an error.
			return "", nil
		}
		return "", fmt.Errorf("failed to change Route 53 record set: %v", removeReqID(err))
	}

	return aws.ToString(resp.ChangeInfo.Id), nil
}

func (r *DNSProvider) getHostedZoneID(ctx context.Context, client *route53.Client, fqdn string) (string, error) {
	if r.hostedZoneID != "" {
		return r.hostedZoneID, nil
	}

	authZone, err := util.FindZoneByFqdn(fqdn, r.dns01Nameservers)
	if err != nil {
		return "", fmt.Errorf("error finding zone from fqdn: %v", err)
	}

	// .DNSName should not have a trailing dot
	reqParams := &route53.ListHostedZonesByNameInput{
		DNSName: aws.String(util.UnFqdn(authZone)),
	}
	resp, err := client.ListHostedZonesByName(ctx, reqParams)
	if err != nil {
		return "", removeReqID(err)
	}

	zoneToID := make(map[string]string)
	var hostedZones []string
	for _, hostedZone := range resp.HostedZones {
		// .Name has a trailing dot
		if !hostedZone.Config.PrivateZone {
			zoneToID[*hostedZone.Name] = *hostedZone.Id
			hostedZones = append(hostedZones, *hostedZone.Name)
		}
	}
	authZone, err = findBestMatch(fqdn, hostedZones...)
	if err != nil {
		return "", fmt.Errorf("zone %s not found in Route 53 for domain %s", authZone, fqdn)
	}

	hostedZoneID, ok := zoneToID[authZone]

	if len(hostedZoneID) == 0 || !ok {
		return "", fmt.Errorf("zone %s not found in Route 53 for domain %s", authZone, fqdn)
	}

	hostedZoneID = strings.TrimPrefix(hostedZoneID, "/hostedzone/")

	return hostedZoneID, nil
}

// findBestMatch returns the longest zone name that the fqdn sits inside.
func findBestMatch(fqdn string, zones ...string) (string, error) {
	var best string
	for _, zone := range zones {
		if zone == fqdn || strings.HasSuffix(fqdn, "."+zone) {
			if len(zone) > len(best) {
				best = zone
			}
		}
	}
	if best == "" {
		return "", fmt.Errorf("no zone found for fqdn %q", fqdn)
	}
	return best, nil
}

func newTXTRecordSet(fqdn, value string, ttl int) *route53types.ResourceRecordSet {
	return &route53types.ResourceRecordSet{
		Name:             aws.String(fqdn),
		Type:             route53types.RRTypeTxt,
		TTL:              aws.Int64(int64(ttl)),
		MultiValueAnswer: aws.Bool(true),
		SetIdentifier:    aws.String(value),
		ResourceRecords: []route53types.ResourceRecord{
			{Value: aws.String(value)},
		},
	}
}

// The aws-sdk-go library appends a request id to its error messages. We
// want our error messages to be the same when the cause is the same to
// avoid spurious challenge updates.
//
// This function must be called everywhere we have an error coming from
// an aws-sdk-go func. The passed error is modified in place.
func removeReqID(err error) error {
	var responseError *awshttp.ResponseError
	if errors.As(err, &responseError) {
		before := responseError.Error()
		// remove the request id from the error message
		responseError.RequestID = "<REDACTED>"
		after := responseError.Error()
		return errors.New(strings.Replace(err.Error(), before, after, 1))
	}
	return err
}
