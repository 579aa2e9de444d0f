package publicip

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servers(t *testing.T, bodies ...string) []string {
	t.Helper()
	var urls []string
	for _, body := range bodies {
		body := body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body+"\n")
		}))
		t.Cleanup(srv.Close)
		urls = append(urls, srv.URL)
	}
	return urls
}

func TestWebIPv4(t *testing.T) {
	tests := []struct {
		name    string
		bodies  []string
		want    netip.Addr
		wantErr bool
	}{
		{
			name:   "single service",
			bodies: []string{"203.0.113.9"},
			want:   netip.MustParseAddr("203.0.113.9"),
		},
		{
			name:   "one failure",
			bodies: []string{"203.0.113.9", "invalid ip", "203.0.113.9"},
			want:   netip.MustParseAddr("203.0.113.9"),
		},
		{
			name:    "mismatch",
			bodies:  []string{"203.0.113.9", "198.51.100.1", "192.0.2.1"},
			wantErr: true,
		},
		{
			name:    "two failures",
			bodies:  []string{"203.0.113.9", "a", "a"},
			wantErr: true,
		},
		{
			name:    "wrong family",
			bodies:  []string{"2001:db8::1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWeb(servers(t, tt.bodies...)...)
			require.NoError(t, err)

			got, err := w.IPv4(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatic(t *testing.T) {
	s := Static{V4: netip.MustParseAddr("203.0.113.9")}

	v4, err := s.IPv4(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", v4.String())

	_, err = s.IPv6(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

type failing struct{ err error }

func (f failing) IPv4(context.Context) (netip.Addr, error) { return netip.Addr{}, f.err }
func (f failing) IPv6(context.Context) (netip.Addr, error) { return netip.Addr{}, f.err }

func TestChain(t *testing.T) {
	boom := errors.New("boom")
	c := Chain{failing{boom}, Static{V6: netip.MustParseAddr("2001:db8::9")}}

	v6, err := c.IPv6(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::9", v6.String())

	_, err = c.IPv4(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, boom)

	_, err = Chain{}.IPv4(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func startWhoami(t *testing.T, answer string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)
		if r.Question[0].Name == whoamiName && r.Question[0].Qclass == dns.ClassCHAOS {
			m.Answer = append(m.Answer, &dns.TXT{
				Hdr: dns.RR_Header{Name: whoamiName, Rrtype: dns.TypeTXT, Class: dns.ClassCHAOS},
				Txt: []string{answer},
			})
		} else {
			m.Rcode = dns.RcodeRefused
		}
		w.WriteMsg(m)
	})}

	started := make(chan struct{})
	srv.NotifyStartedFunc = func() { close(started) }
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSIPv4(t *testing.T) {
	addr := startWhoami(t, "203.0.113.9")
	d := &DNS{Server4: addr, Timeout: 2 * time.Second}

	got, err := d.IPv4(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.9"), got)
}

func TestDNSWrongFamily(t *testing.T) {
	addr := startWhoami(t, "2001:db8::1")
	d := &DNS{Server4: addr, Timeout: 2 * time.Second}

	_, err := d.IPv4(context.Background())
	assert.Error(t, err)
}
