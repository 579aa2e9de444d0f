package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
)

const (
	zoneEditPermission = "#zone:edit"
	zoneStatusActive   = "active"
	recordsPerPage     = 100
)

var ErrMissingToken = errors.New("cloudflare API token required")

// CloudflareProvider talks to the Cloudflare v4 API. Every call is bounded by
// the configured timeout and is never retried; the next cycle is the retry.
type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
	timeout time.Duration
}

func New(token string, timeout time.Duration, metrics *metrics.Metrics, opts ...cloudflare.Option) (*CloudflareProvider, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts = append([]cloudflare.Option{
		cloudflare.HTTPClient(&http.Client{Timeout: timeout}),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}, opts...)

	client, err := cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
		timeout: timeout,
	}, nil
}

// ListZones returns the active zones the token may edit.
func (p *CloudflareProvider) ListZones(ctx context.Context) ([]provider.Zone, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	zones, err := p.client.ListZones(ctx)
	if err != nil {
		p.metrics.IncProviderRequest("read", false)
		return nil, provider.Wrap("list zones", err)
	}
	p.metrics.IncProviderRequest("read", true)

	var result []provider.Zone
	for _, z := range zones {
		if z.Status != zoneStatusActive {
			continue
		}
		if len(z.Permissions) > 0 && !slices.Contains(z.Permissions, zoneEditPermission) {
			continue
		}
		result = append(result, provider.Zone{ID: z.ID, Name: z.Name})
	}

	slog.Debug("Retrieved zones", "count", len(result), "duration", time.Since(start))
	return result, nil
}

// ListRecords returns the unlocked A and AAAA records of a zone.
func (p *CloudflareProvider) ListRecords(ctx context.Context, zoneID string) ([]provider.Record, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var allRecords []cloudflare.DNSRecord
	page := 1
	for {
		rc := cloudflare.ZoneIdentifier(zoneID)
		params := cloudflare.ListDNSRecordsParams{
			ResultInfo: cloudflare.ResultInfo{
				Page:    page,
				PerPage: recordsPerPage,
			},
		}

		records, resultInfo, err := p.client.ListDNSRecords(ctx, rc, params)
		if err != nil {
			p.metrics.IncProviderRequest("read", false)
			return nil, provider.Wrap("list records", err)
		}

		allRecords = append(allRecords, records...)
		if resultInfo == nil || page >= resultInfo.TotalPages {
			break
		}
		page++
	}
	p.metrics.IncProviderRequest("read", true)

	var result []provider.Record
	for _, r := range allRecords {
		rt := provider.RecordType(r.Type)
		if !rt.Valid() || r.Locked {
			continue
		}
		result = append(result, provider.Record{
			ID:       r.ID,
			ZoneID:   zoneID,
			ZoneName: r.ZoneName,
			Name:     r.Name,
			Type:     rt,
			Content:  r.Content,
		})
	}

	slog.Debug("Retrieved DNS records", "zone", zoneID, "count", len(result), "duration", time.Since(start))
	return result, nil
}

func (p *CloudflareProvider) UpdateRecord(ctx context.Context, zoneID, recordID, content string) error {
	slog.Info("Updating DNS record", "zone", zoneID, "record", recordID, "content", content)
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := cloudflare.UpdateDNSRecordParams{
		ID:      recordID,
		Content: content,
	}

	_, err := p.client.UpdateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params)
	if err != nil {
		p.metrics.IncProviderRequest("update", false)
		return provider.Wrap("update record", err)
	}

	p.metrics.IncProviderRequest("update", true)
	slog.Debug("Updated DNS record", "zone", zoneID, "record", recordID, "duration", time.Since(start))
	return nil
}

// Verify reports the status of the API token.
func (p *CloudflareProvider) Verify(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.client.VerifyAPIToken(ctx)
	if err != nil {
		p.metrics.IncProviderRequest("verify", false)
		return "", provider.Wrap("verify token", err)
	}
	p.metrics.IncProviderRequest("verify", true)
	return res.Status, nil
}
