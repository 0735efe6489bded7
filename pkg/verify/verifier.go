package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/mcnijman/go-emailaddress"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/models"
	"github.com/Sriram-PR/emailscope/pkg/utils"
)

// strictPattern is the character-class check of the format stage
var strictPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._+-]*[a-zA-Z0-9])?@[a-zA-Z0-9]([a-zA-Z0-9.-]*[a-zA-Z0-9])?\.[a-zA-Z]{2,}$`)

// Confidence weights
const (
	weightFormat      = 20
	weightMX          = 30
	weightSkippedSMTP = 20 // Mailbox probing is never performed; the weight is always granted
	maxReputation     = 30
	bonusReputable    = 10
	penaltyLength     = 10

	confidenceDisposable = 10
	validThreshold       = 30
)

// Reputation scores
const (
	reputationReputable  = 90
	reputationSuspicious = 20
	reputationShort      = 30
	reputationLong       = 40
	reputationDefault    = 60
)

// Verifier runs the staged checks: format, disposable, reputation, MX.
// Safe for concurrent use; MX answers are cached and concurrent lookups of
// the same domain are coalesced.
type Verifier struct {
	disposable  map[string]bool
	disposableP []*regexp.Regexp
	reputable   map[string]bool
	suspicious  []*regexp.Regexp

	resolver MXResolver
	cache    *MXCache
	group    singleflight.Group
	timeout  time.Duration
	mockDNS  bool
	log      *logrus.Entry
}

// NewVerifier creates a Verifier. resolver may be nil when cfg.MockDNS is set;
// otherwise nil means NewResolver(cfg.Nameserver).
func NewVerifier(cfg config.VerificationConfig, tables *config.Tables, resolver MXResolver, log *logrus.Entry) (*Verifier, error) {
	disposableP, err := utils.CompileRegexPatterns(caseInsensitive(tables.DisposablePatterns))
	if err != nil {
		return nil, err
	}
	suspicious, err := utils.CompileRegexPatterns(tables.SuspiciousPatterns)
	if err != nil {
		return nil, err
	}
	if resolver == nil && !cfg.MockDNS {
		resolver = NewResolver(cfg.Nameserver)
	}
	return &Verifier{
		disposable:  toSet(tables.DisposableDomains),
		disposableP: disposableP,
		reputable:   toSet(tables.ReputableDomains),
		suspicious:  suspicious,
		resolver:    resolver,
		cache:       NewMXCache(),
		timeout:     cfg.Timeout,
		mockDNS:     cfg.MockDNS,
		log:         log,
	}, nil
}

// Verify classifies one address. It never returns an error; failures are
// expressed as an invalid result with the reason.
func (v *Verifier) Verify(ctx context.Context, email string) models.VerificationResult {
	email = strings.ToLower(strings.TrimSpace(email))
	verifyLog := v.log.WithField("email", email)

	if err := CheckFormat(email); err != nil {
		verifyLog.Debugf("Format check failed: %v", err)
		return models.VerificationResult{Email: email, Confidence: 0, Reason: "format invalid: " + detail(err)}
	}
	_, domain, _ := strings.Cut(email, "@")

	if err := v.checkDisposable(domain); err != nil {
		verifyLog.Debugf("Disposable: %v", err)
		return models.VerificationResult{Email: email, Confidence: confidenceDisposable, Reason: "disposable: " + detail(err)}
	}

	reputation := v.Reputation(domain)

	mxStatus := "MX: OK"
	if !v.mockDNS {
		records, err := v.lookupMX(ctx, domain)
		if err != nil {
			verifyLog.WithField("error_type", utils.CategorizeError(err)).Debugf("MX check failed: %v", err)
			return models.VerificationResult{Email: email, Confidence: 0, Reason: "MX failed: " + detail(err)}
		}
		mxStatus = fmt.Sprintf("MX: OK (%d records)", records)
	}

	confidence := v.confidence(domain, reputation)
	return models.VerificationResult{
		Email:      email,
		IsValid:    confidence > validThreshold,
		Confidence: confidence,
		Reason:     fmt.Sprintf("Format: OK, %s, Reputation: %d/100, Not disposable", mxStatus, reputation),
	}
}

// CheckFormat returns an error wrapping utils.ErrFormatInvalid describing the first failed rule
func CheckFormat(email string) error {
	fail := func(msg string) error { return fmt.Errorf("%w: %s", utils.ErrFormatInvalid, msg) }

	if email == "" {
		return fail("empty address")
	}
	if strings.Count(email, "@") != 1 {
		return fail("address must contain exactly one @")
	}
	local, domain, _ := strings.Cut(email, "@")
	if local == "" || len(local) > 64 {
		return fail("invalid local part length")
	}
	if domain == "" || len(domain) > 253 {
		return fail("invalid domain length")
	}
	if strings.Contains(email, "..") {
		return fail("consecutive dots")
	}
	if _, err := emailaddress.Parse(email); err != nil {
		return fail("structure rejected")
	}
	if !strictPattern.MatchString(email) {
		return fail("invalid characters")
	}
	tld := domain[strings.LastIndex(domain, ".")+1:]
	if len(tld) < 2 {
		return fail("TLD too short")
	}
	return nil
}

func (v *Verifier) checkDisposable(domain string) error {
	if v.disposable[domain] {
		return fmt.Errorf("%w: known disposable domain %s", utils.ErrDisposable, domain)
	}
	for _, p := range v.disposableP {
		if p.MatchString(domain) {
			return fmt.Errorf("%w: pattern %s matched %s", utils.ErrDisposable, strings.TrimPrefix(p.String(), "(?i)"), domain)
		}
	}
	return nil
}

// Reputation scores domain: allowlisted 90, digit-heavy 20, shorter than 5 chars 30,
// longer than 30 chars 40, anything else 60.
func (v *Verifier) Reputation(domain string) int {
	if v.reputable[domain] {
		return reputationReputable
	}
	for _, p := range v.suspicious {
		if p.MatchString(domain) {
			return reputationSuspicious
		}
	}
	switch {
	case len(domain) < 5:
		return reputationShort
	case len(domain) > 30:
		return reputationLong
	}
	return reputationDefault
}

func (v *Verifier) confidence(domain string, reputation int) int {
	score := weightFormat + weightMX + weightSkippedSMTP + min(reputation, maxReputation)
	if v.reputable[domain] {
		score += bonusReputable
	}
	if len(domain) < 5 || len(domain) > 30 {
		score -= penaltyLength
	}
	return max(0, min(score, 100))
}

// lookupMX returns the MX record count for domain.
// Answers (including NXDOMAIN) are cached; timeouts and cancellations are not.
// The shared lookup is detached from the caller that started it and bounded
// by the verifier timeout. Each caller returns as soon as its own ctx is done.
func (v *Verifier) lookupMX(ctx context.Context, domain string) (int, error) {
	if answer, ok := v.cache.Get(domain); ok {
		return answer.records, answer.err
	}

	flight := v.group.DoChan(domain, func() (any, error) {
		lookupCtx := context.WithoutCancel(ctx)
		if v.timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(lookupCtx, v.timeout)
			defer cancel()
		}

		records, err := v.resolver.LookupMX(lookupCtx, domain)
		answer := mxAnswer{records: len(records)}
		switch {
		case err != nil:
			answer.err = fmt.Errorf("%w: %w", utils.ErrNoMXRecord, err)
		case len(records) == 0:
			answer.err = fmt.Errorf("%w: no MX records found", utils.ErrNoMXRecord)
		}
		if cacheable(err) {
			v.cache.Set(domain, answer)
		}
		return answer, nil
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", utils.ErrNoMXRecord, ctx.Err())
	}
	if res.Err != nil {
		return 0, res.Err
	}
	if res.Shared {
		v.log.WithFields(logrus.Fields{"domain": domain, "cached": v.cache.size()}).Trace("MX lookup shared with concurrent caller")
	}
	answer := res.Val.(mxAnswer)
	return answer.records, answer.err
}

// cacheable reports whether a lookup error is a definitive answer
func cacheable(err error) bool {
	if err == nil {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// detail renders a stage error without its sentinel prefix
func detail(err error) string {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr) && dnsErr.IsNotFound:
		return "domain not found or has no MX records"
	case errors.As(err, &dnsErr) && dnsErr.IsTimeout, errors.Is(err, context.DeadlineExceeded):
		return "DNS timeout"
	case errors.As(err, &dnsErr):
		return "DNS error: " + dnsErr.Err
	}
	msg := err.Error()
	for _, sentinel := range []error{utils.ErrFormatInvalid, utils.ErrDisposable, utils.ErrNoMXRecord} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}

func caseInsensitive(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p != "" {
			out = append(out, "(?i)"+p)
		}
	}
	return out
}
