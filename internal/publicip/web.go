package publicip

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	lookupTimeout = 15 * time.Second
	quorumSize    = 3
)

var DefaultWebURLs = []string{
	"https://api64.ipify.org",
	"https://icanhazip.com",
	"https://ifconfig.co/ip",
}

// Web asks plain-text "what is my ip" services. Each family is looked up over
// a transport pinned to that family, and an answer is only accepted once two
// services agree on it.
type Web struct {
	serviceURLs []*url.URL
	client4     *http.Client
	client6     *http.Client
}

func NewWeb(serviceURLs ...string) (*Web, error) {
	if len(serviceURLs) == 0 {
		serviceURLs = DefaultWebURLs
	}
	var urls []*url.URL
	for _, u := range serviceURLs {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("error parsing URL: %w", err)
		}
		urls = append(urls, pu)
	}
	return &Web{
		serviceURLs: urls,
		client4:     pinnedClient("tcp4"),
		client6:     pinnedClient("tcp6"),
	}, nil
}

func pinnedClient(network string) *http.Client {
	dialer := &net.Dialer{Timeout: lookupTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, network, addr)
	}
	return &http.Client{Transport: transport}
}

func (w *Web) IPv4(ctx context.Context) (netip.Addr, error) {
	return w.resolve(ctx, w.client4, false)
}

func (w *Web) IPv6(ctx context.Context) (netip.Addr, error) {
	return w.resolve(ctx, w.client6, true)
}

func (w *Web) resolve(ctx context.Context, client *http.Client, v6 bool) (netip.Addr, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		addr netip.Addr
		err  error
	}

	results := make(chan result, quorumSize)
	var wg sync.WaitGroup
	wg.Add(quorumSize)
	for i := 0; i < quorumSize; i++ {
		u := w.serviceURLs[i%len(w.serviceURLs)]
		go func() {
			defer wg.Done()
			r := result{}
			r.addr, r.err = lookup(ctx, client, u)
			if r.err == nil {
				r.addr, r.err = checkFamily(r.addr, v6)
			}
			results <- r
		}()
	}
	go func() { wg.Wait(); close(results) }()

	var errs []error
	var first netip.Addr
	answered := 0
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		answered++
		if !first.IsValid() {
			first = r.addr
			continue
		}
		if first == r.addr {
			return first, nil
		}
	}
	if answered < 2 {
		return netip.Addr{}, fmt.Errorf("not enough services responded without errors: %w", errors.Join(errs...))
	}
	return netip.Addr{}, errors.New("ip services did not agree on our address")
}

func lookup(ctx context.Context, client *http.Client, u *url.URL) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	line, _ := bufio.NewReader(resp.Body).ReadString('\n')
	ip, err := netip.ParseAddr(strings.TrimSpace(line))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return ip, nil
}
