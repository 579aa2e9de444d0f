package publicip

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const whoamiName = "whoami.cloudflare."

// DNS asks Cloudflare's resolvers which address the query came from, using
// the CHAOS-class TXT record whoami.cloudflare.
type DNS struct {
	Server4 string
	Server6 string
	Timeout time.Duration
}

func NewDNS(timeout time.Duration) *DNS {
	return &DNS{
		Server4: "1.1.1.1:53",
		Server6: "[2606:4700:4700::1111]:53",
		Timeout: timeout,
	}
}

func (d *DNS) IPv4(ctx context.Context) (netip.Addr, error) {
	return d.query(ctx, "udp4", d.Server4, false)
}

func (d *DNS) IPv6(ctx context.Context) (netip.Addr, error) {
	return d.query(ctx, "udp6", d.Server6, true)
}

func (d *DNS) query(ctx context.Context, network, server string, v6 bool) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(whoamiName, dns.TypeTXT)
	m.Question[0].Qclass = dns.ClassCHAOS

	c := &dns.Client{Net: network, Timeout: d.Timeout}
	in, _, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("query %s: %w", server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("query %s: %s", server, dns.RcodeToString[in.Rcode])
	}

	for _, rr := range in.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok || len(txt.Txt) == 0 {
			continue
		}
		addr, err := netip.ParseAddr(strings.TrimSpace(txt.Txt[0]))
		if err != nil {
			return netip.Addr{}, fmt.Errorf("parse answer from %s: %w", server, err)
		}
		return checkFamily(addr, v6)
	}
	return netip.Addr{}, fmt.Errorf("query %s: no TXT answer", server)
}
