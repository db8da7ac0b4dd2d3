package enrichment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMetadataClient struct {
	mu     sync.Mutex
	values map[string]string
	fail   map[string]error
	block  bool
	panics bool
	calls  []string
}

func (f *fakeMetadataClient) GetMetadata(ctx context.Context, params *imds.GetMetadataInput, _ ...func(*imds.Options)) (*imds.GetMetadataOutput, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params.Path)
	f.mu.Unlock()

	if f.panics {
		panic("metadata client exploded")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.fail[params.Path]; err != nil {
		return nil, err
	}
	return &imds.GetMetadataOutput{Content: io.NopCloser(strings.NewReader(f.values[params.Path] + "\n"))}, nil
}

func allMetadata() map[string]string {
	return map[string]string{
		"instance-id":                 "i-0abc123",
		"instance-type":               "t3.micro",
		"placement/availability-zone": "eu-west-1a",
		"public-ipv4":                 "203.0.113.10",
	}
}

func TestMetadataProbe_DisabledDoesNoIO(t *testing.T) {
	client := &fakeMetadataClient{values: allMetadata()}

	md := NewMetadataProbe(client, false, 0, zap.NewNop()).Probe(context.Background())

	assert.True(t, md.IsEmpty())
	assert.Empty(t, client.calls)
}

func TestMetadataProbe_AllFields(t *testing.T) {
	client := &fakeMetadataClient{values: allMetadata()}

	md := NewMetadataProbe(client, true, 0, zap.NewNop()).Probe(context.Background())

	assert.Empty(t, md.Advisory)
	assert.Equal(t, []MetadataValue{
		{Label: "Instance ID", Value: "i-0abc123"},
		{Label: "Instance Type", Value: "t3.micro"},
		{Label: "Availability Zone", Value: "eu-west-1a"},
		{Label: "Public IPv4", Value: "203.0.113.10"},
	}, md.Values)
}

func TestMetadataProbe_StopsAtFirstFailureKeepingEarlierValues(t *testing.T) {
	client := &fakeMetadataClient{
		values: allMetadata(),
		fail:   map[string]error{"placement/availability-zone": errors.New("connection refused")},
	}

	md := NewMetadataProbe(client, true, 0, zap.NewNop()).Probe(context.Background())

	assert.Equal(t, MetadataUnavailable, md.Advisory)
	assert.Equal(t, []MetadataValue{
		{Label: "Instance ID", Value: "i-0abc123"},
		{Label: "Instance Type", Value: "t3.micro"},
	}, md.Values)
	assert.Equal(t, []string{"instance-id", "instance-type", "placement/availability-zone"}, client.calls)
}

func TestMetadataProbe_TimeoutIsFieldFailure(t *testing.T) {
	client := &fakeMetadataClient{block: true}

	start := time.Now()
	md := NewMetadataProbe(client, true, 30*time.Millisecond, zap.NewNop()).Probe(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, MetadataUnavailable, md.Advisory)
	assert.Empty(t, md.Values)
	assert.Len(t, client.calls, 1)
}

func TestMetadataProbe_AgainstIMDSEndpoint(t *testing.T) {
	values := allMetadata()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/latest/api/token" {
			w.Header().Set("X-Aws-Ec2-Metadata-Token-Ttl-Seconds", "21600")
			_, _ = io.WriteString(w, "test-token")
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/latest/meta-data/")
		if path == "public-ipv4" {
			http.NotFound(w, r)
			return
		}
		if v, ok := values[path]; ok {
			_, _ = io.WriteString(w, v)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	probe := NewMetadataProbe(NewIMDSClient(srv.URL), true, time.Second, zap.NewNop())
	md := probe.Probe(context.Background())

	assert.Equal(t, MetadataUnavailable, md.Advisory)
	require.Len(t, md.Values, 3)
	assert.Equal(t, "i-0abc123", md.Values[0].Value)
	assert.Equal(t, "eu-west-1a", md.Values[2].Value)
}

func TestMetadataProbe_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	md := NewMetadataProbe(NewIMDSClient(endpoint), true, 200*time.Millisecond, zap.NewNop()).Probe(context.Background())

	assert.Equal(t, MetadataUnavailable, md.Advisory)
	assert.Empty(t, md.Values)
}
