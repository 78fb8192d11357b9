// Package shieldtest contains utilities for testing.
package shieldtest

import (
	"context"
	"net/netip"
	"time"
)

// Exchanger is a function-backed mock of resolver.Exchanger.  A call panics
// if the corresponding handler is not set.
type Exchanger struct {
	OnExchange func(
		ctx context.Context,
		host string,
		qtype uint16,
	) (addrs []netip.Addr, ttl time.Duration, err error)
}

// Exchange implements the resolver.Exchanger interface for *Exchanger.
func (x *Exchanger) Exchange(
	ctx context.Context,
	host string,
	qtype uint16,
) (addrs []netip.Addr, ttl time.Duration, err error) {
	return x.OnExchange(ctx, host, qtype)
}

// StaticExchanger returns an exchanger that answers every question with
// addrs and ttl.
func StaticExchanger(ttl time.Duration, addrs ...netip.Addr) (x *Exchanger) {
	return &Exchanger{
		OnExchange: func(
			_ context.Context,
			_ string,
			_ uint16,
		) (a []netip.Addr, t time.Duration, err error) {
			return addrs, ttl, nil
		},
	}
}
