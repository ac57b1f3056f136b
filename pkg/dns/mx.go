package dns

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

var publicResolvers = []string{"1.1.1.1:53", "8.8.8.8:53"}

// MXResolver checks that an email domain can receive mail.
type MXResolver struct {
	Servers []string
	Timeout time.Duration
}

func NewMXResolver() *MXResolver {
	return &MXResolver{Servers: publicResolvers, Timeout: 3 * time.Second}
}

// HasMX reports false only on a definitive answer: the domain does not exist,
// or it has neither MX nor A records. Resolver failures are returned as
// errors so callers can decide to let the address through.
func (r *MXResolver) HasMX(ctx context.Context, domain string) (bool, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return false, errors.New("domain cannot be empty")
	}
	host := dns.Fqdn(domain)

	for _, server := range r.Servers {
		ok, err := r.query(ctx, host, server)
		if err == nil {
			return ok, nil
		}
		zap.L().Debug("[DNS] resolver failed", zap.String("resolver", server), zap.String("domain", domain), zap.Error(err))
	}

	zap.L().Debug("[DNS] falling back to system resolver", zap.String("domain", domain))
	mx, err := net.DefaultResolver.LookupMX(ctx, domain)
	if err == nil {
		return len(mx) > 0, nil
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return false, nil
	}
	return false, err
}

func (r *MXResolver) query(ctx context.Context, host, server string) (bool, error) {
	client := &dns.Client{Timeout: r.Timeout}

	resp, err := r.exchange(ctx, client, host, dns.TypeMX, server)
	if err != nil {
		return false, err
	}
	if resp.Rcode == dns.RcodeNameError {
		return false, nil
	}
	for _, ans := range resp.Answer {
		if _, ok := ans.(*dns.MX); ok {
			return true, nil
		}
	}

	// Without MX records mail falls back to the domain's address record.
	resp, err = r.exchange(ctx, client, host, dns.TypeA, server)
	if err != nil {
		return false, err
	}
	for _, ans := range resp.Answer {
		if _, ok := ans.(*dns.A); ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *MXResolver) exchange(ctx context.Context, client *dns.Client, host string, qtype uint16, server string) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(host, qtype)

	resp, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return nil, errors.New("dns query failed: " + dns.RcodeToString[resp.Rcode])
	}
	return resp, nil
}
