package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/AdguardTeam/dnsproxy/upstream"
	"github.com/miekg/dns"
)

// Exchanger is the upstream lookup capability of the resolver.  It answers
// a single question and reports the answer's remaining TTL, or zero when
// the upstream supplied none.
type Exchanger interface {
	Exchange(
		ctx context.Context,
		host string,
		qtype uint16,
	) (addrs []netip.Addr, ttl time.Duration, err error)
}

// DefaultUpstreamTimeout is the default timeout of a single upstream
// exchange.
const DefaultUpstreamTimeout = 5 * time.Second

// UpstreamConfig is the DNS upstream exchanger configuration structure.
type UpstreamConfig struct {
	// Logger is used for logging the operation of the exchanger.  It must
	// not be nil.
	Logger *slog.Logger

	// Address is the upstream address in any format accepted by dnsproxy,
	// for example "8.8.8.8", "tls://1.1.1.1", or
	// "https://dns.cloudflare.com/dns-query".
	Address string

	// Timeout is the timeout of a single exchange.  Zero means
	// [DefaultUpstreamTimeout].
	Timeout time.Duration
}

// UpstreamExchanger resolves names through a single dnsproxy upstream.
type UpstreamExchanger struct {
	logger *slog.Logger
	ups    upstream.Upstream
}

// type check
var _ Exchanger = (*UpstreamExchanger)(nil)

// NewUpstreamExchanger returns a new exchanger for the upstream address in
// conf.  conf must not be nil.
func NewUpstreamExchanger(conf *UpstreamConfig) (x *UpstreamExchanger, err error) {
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = DefaultUpstreamTimeout
	}

	ups, err := upstream.AddressToUpstream(conf.Address, &upstream.Options{
		Logger:  conf.Logger,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream %q: %w", conf.Address, err)
	}

	return &UpstreamExchanger{
		logger: conf.Logger,
		ups:    ups,
	}, nil
}

// Exchange implements the [Exchanger] interface for *UpstreamExchanger.
func (x *UpstreamExchanger) Exchange(
	ctx context.Context,
	host string,
	qtype uint16,
) (addrs []netip.Addr, ttl time.Duration, err error) {
	if err = ctx.Err(); err != nil {
		return nil, 0, err
	}

	req := (&dns.Msg{}).SetQuestion(dns.Fqdn(host), qtype)

	resp, err := x.ups.Exchange(req)
	if err != nil {
		return nil, 0, fmt.Errorf("exchanging: %w", err)
	}

	if resp.Rcode != dns.RcodeSuccess {
		return nil, 0, fmt.Errorf("response code %s", dns.RcodeToString[resp.Rcode])
	}

	addrs, ttl = answerAddrs(resp)

	x.logger.DebugContext(
		ctx,
		"exchanged",
		"host", host,
		"qtype", dns.TypeToString[qtype],
		"answers", len(addrs),
		"ttl", ttl,
	)

	return addrs, ttl, nil
}

// answerAddrs collects the A and AAAA records of resp.  ttl is the
// smallest TTL among them, or zero if there are none.
func answerAddrs(resp *dns.Msg) (addrs []netip.Addr, ttl time.Duration) {
	for _, rr := range resp.Answer {
		var ip netip.Addr
		var ok bool
		switch rr := rr.(type) {
		case *dns.A:
			ip, ok = netip.AddrFromSlice(rr.A.To4())
		case *dns.AAAA:
			ip, ok = netip.AddrFromSlice(rr.AAAA)
		default:
			continue
		}

		if !ok {
			continue
		}

		addrs = append(addrs, ip)

		rrTTL := time.Duration(rr.Header().Ttl) * time.Second
		if ttl == 0 || rrTTL < ttl {
			ttl = rrTTL
		}
	}

	return addrs, ttl
}
