// Package publicip discovers the public addresses of this machine.
package publicip

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

var ErrUnavailable = errors.New("address unavailable")

// Resolver looks up the current public address of one family at a time.
// The families are independent: a failed IPv6 lookup says nothing about IPv4.
type Resolver interface {
	IPv4(ctx context.Context) (netip.Addr, error)
	IPv6(ctx context.Context) (netip.Addr, error)
}

// Static returns fixed addresses. A zero address is unavailable.
type Static struct {
	V4 netip.Addr
	V6 netip.Addr
}

func (s Static) IPv4(context.Context) (netip.Addr, error) {
	if !s.V4.IsValid() {
		return netip.Addr{}, ErrUnavailable
	}
	return s.V4, nil
}

func (s Static) IPv6(context.Context) (netip.Addr, error) {
	if !s.V6.IsValid() {
		return netip.Addr{}, ErrUnavailable
	}
	return s.V6, nil
}

// Chain tries each resolver in order and returns the first answer.
type Chain []Resolver

func (c Chain) IPv4(ctx context.Context) (netip.Addr, error) {
	return c.first(ctx, Resolver.IPv4)
}

func (c Chain) IPv6(ctx context.Context) (netip.Addr, error) {
	return c.first(ctx, Resolver.IPv6)
}

func (c Chain) first(ctx context.Context, lookup func(Resolver, context.Context) (netip.Addr, error)) (netip.Addr, error) {
	if len(c) == 0 {
		return netip.Addr{}, ErrUnavailable
	}
	var errs []error
	for _, r := range c {
		addr, err := lookup(r, ctx)
		if err == nil {
			return addr, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return netip.Addr{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}

func checkFamily(addr netip.Addr, v6 bool) (netip.Addr, error) {
	addr = addr.Unmap()
	if v6 != addr.Is6() {
		return netip.Addr{}, fmt.Errorf("got %s for the wrong address family", addr)
	}
	return addr, nil
}
