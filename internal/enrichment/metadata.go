package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"go.uber.org/zap"
)

const (
	MetadataUnavailable = "Instance metadata is unavailable. If you are running locally, this is expected."

	DefaultMetadataTimeout = 200 * time.Millisecond

	maxMetadataValue = 4 << 10
)

// MetadataField maps a display label to its path under /latest/meta-data/.
type MetadataField struct {
	Label string
	Path  string
}

// MetadataFields is probed in this order.
var MetadataFields = []MetadataField{
	{Label: "Instance ID", Path: "instance-id"},
	{Label: "Instance Type", Path: "instance-type"},
	{Label: "Availability Zone", Path: "placement/availability-zone"},
	{Label: "Public IPv4", Path: "public-ipv4"},
}

type MetadataValue struct {
	Label string
	Value string
}

// Metadata holds the values fetched before the first failure and, if there
// was one, the advisory that replaces the rest.
type Metadata struct {
	Values   []MetadataValue
	Advisory string
}

func (m Metadata) IsEmpty() bool {
	return len(m.Values) == 0 && m.Advisory == ""
}

// MetadataClient is the part of the IMDS client the probe uses.
type MetadataClient interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

// NewIMDSClient builds an IMDS client for endpoint with retries off; the
// per-field deadline is the only bound on how long a probe may take.
func NewIMDSClient(endpoint string) *imds.Client {
	return imds.New(imds.Options{
		Endpoint:   endpoint,
		Retryer:    aws.NopRetryer{},
		HTTPClient: &http.Client{},
	})
}

type MetadataProbe struct {
	client  MetadataClient
	enabled bool
	timeout time.Duration
	logger  *zap.Logger
}

func NewMetadataProbe(client MetadataClient, enabled bool, timeout time.Duration, logger *zap.Logger) *MetadataProbe {
	if timeout <= 0 {
		timeout = DefaultMetadataTimeout
	}
	return &MetadataProbe{
		client:  client,
		enabled: enabled,
		timeout: timeout,
		logger:  logger,
	}
}

// Probe fetches MetadataFields in order and stops at the first failure.
// When the probe is disabled it returns an empty Metadata without any I/O.
func (p *MetadataProbe) Probe(ctx context.Context) Metadata {
	var md Metadata
	if !p.enabled || p.client == nil {
		return md
	}

	for _, field := range MetadataFields {
		value, err := p.fetch(ctx, field.Path)
		if err != nil {
			p.logger.Debug("Instance metadata fetch failed", zap.String("path", field.Path), zap.Error(err))
			md.Advisory = MetadataUnavailable
			break
		}
		md.Values = append(md.Values, MetadataValue{Label: field.Label, Value: value})
	}
	return md
}

func (p *MetadataProbe) fetch(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		return "", err
	}
	defer out.Content.Close()

	body, err := io.ReadAll(io.LimitReader(out.Content, maxMetadataValue))
	if err != nil {
		return "", fmt.Errorf("failed to read metadata %s: %w", path, err)
	}
	return strings.TrimSpace(string(body)), nil
}
