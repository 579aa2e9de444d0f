package cloudflare

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/cddns/internal/metrics"
	"github.com/evanofslack/cddns/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const zonesBody = `{
  "success": true, "errors": [], "messages": [],
  "result": [
    {"id": "z1", "name": "example.com", "status": "active", "permissions": ["#zone:read", "#zone:edit"]},
    {"id": "z2", "name": "pending.example", "status": "pending"},
    {"id": "z3", "name": "readonly.example", "status": "active", "permissions": ["#zone:read"]}
  ],
  "result_info": {"page": 1, "per_page": 50, "count": 3, "total_count": 3, "total_pages": 1}
}`

const recordsBody = `{
  "success": true, "errors": [], "messages": [],
  "result": [
    {"id": "r1", "zone_id": "z1", "zone_name": "example.com", "name": "home.example.com", "type": "A", "content": "203.0.113.5"},
    {"id": "r2", "zone_id": "z1", "zone_name": "example.com", "name": "home.example.com", "type": "AAAA", "content": "2001:db8::5"},
    {"id": "r3", "zone_id": "z1", "zone_name": "example.com", "name": "mail.example.com", "type": "MX", "content": "mx.example.com"},
    {"id": "r4", "zone_id": "z1", "zone_name": "example.com", "name": "locked.example.com", "type": "A", "content": "203.0.113.7", "locked": true}
  ],
  "result_info": {"page": 1, "per_page": 100, "count": 4, "total_count": 4, "total_pages": 1}
}`

func newTestProvider(t *testing.T, handler http.Handler) *CloudflareProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New("test-token", 5*time.Second, metrics.New(false), cloudflare.BaseURL(srv.URL))
	require.NoError(t, err)
	return p
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("", time.Second, metrics.New(false))
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestListZones(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zones", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		io.WriteString(w, zonesBody)
	}))

	zones, err := p.ListZones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []provider.Zone{{ID: "z1", Name: "example.com"}}, zones)
}

func TestListRecords(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zones/z1/dns_records", r.URL.Path)
		io.WriteString(w, recordsBody)
	}))

	records, err := p.ListRecords(context.Background(), "z1")
	require.NoError(t, err)
	assert.Equal(t, []provider.Record{
		{ID: "r1", ZoneID: "z1", ZoneName: "example.com", Name: "home.example.com", Type: provider.TypeA, Content: "203.0.113.5"},
		{ID: "r2", ZoneID: "z1", ZoneName: "example.com", Name: "home.example.com", Type: provider.TypeAAAA, Content: "2001:db8::5"},
	}, records)
}

func TestUpdateRecord(t *testing.T) {
	var got map[string]any
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/zones/z1/dns_records/r1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"success": true, "errors": [], "messages": [], "result": {"id": "r1", "type": "A", "name": "home.example.com", "content": "203.0.113.9"}}`)
	}))

	err := p.UpdateRecord(context.Background(), "z1", "r1", "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9", got["content"])
}

func TestUpdateRecordRejected(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"success": false, "errors": [{"code": 10000, "message": "Authentication error"}], "messages": [], "result": null}`)
	}))

	err := p.UpdateRecord(context.Background(), "z1", "r1", "203.0.113.9")
	require.Error(t, err)
	assert.True(t, provider.IsRejected(err))
}

func TestUpdateRecordTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	p, err := New("test-token", 50*time.Millisecond, metrics.New(false), cloudflare.BaseURL(srv.URL))
	require.NoError(t, err)

	err = p.UpdateRecord(context.Background(), "z1", "r1", "203.0.113.9")
	require.Error(t, err)
	assert.True(t, provider.IsTransport(err))
}
