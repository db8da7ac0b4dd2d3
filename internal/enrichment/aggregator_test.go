package enrichment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeWords(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Limerick.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestCollect_BothSources(t *testing.T) {
	logger := zap.NewNop()
	agg := NewAggregator(
		NewMetadataProbe(&fakeMetadataClient{values: allMetadata()}, true, 0, logger),
		NewFileStatProbe(writeWords(t, "one two"), logger),
		logger,
	)

	d := agg.Collect(context.Background())

	assert.Len(t, d.Metadata.Values, 4)
	require.True(t, d.Limerick.Available())
	assert.Equal(t, 2, d.Limerick.Value().WordCount)
}

func TestCollect_MetadataFailureDoesNotAffectFile(t *testing.T) {
	logger := zap.NewNop()
	client := &fakeMetadataClient{fail: map[string]error{"instance-id": errors.New("no route to host")}}
	agg := NewAggregator(
		NewMetadataProbe(client, true, 0, logger),
		NewFileStatProbe(writeWords(t, "a b c d"), logger),
		logger,
	)

	d := agg.Collect(context.Background())

	assert.Equal(t, MetadataUnavailable, d.Metadata.Advisory)
	require.True(t, d.Limerick.Available())
	assert.Equal(t, 4, d.Limerick.Value().WordCount)
}

func TestCollect_FileFailureDoesNotAffectMetadata(t *testing.T) {
	logger := zap.NewNop()
	agg := NewAggregator(
		NewMetadataProbe(&fakeMetadataClient{values: allMetadata()}, true, 0, logger),
		NewFileStatProbe(filepath.Join(t.TempDir(), "Limerick.txt"), logger),
		logger,
	)

	d := agg.Collect(context.Background())

	assert.Len(t, d.Metadata.Values, 4)
	assert.Empty(t, d.Metadata.Advisory)
	assert.Equal(t, "Limerick.txt not found.", d.Limerick.Reason())
}

func TestCollect_PanickingProbeIsContained(t *testing.T) {
	logger := zap.NewNop()
	agg := NewAggregator(
		NewMetadataProbe(&fakeMetadataClient{panics: true}, true, 0, logger),
		NewFileStatProbe(writeWords(t, "still here"), logger),
		logger,
	)

	var d Dashboard
	require.NotPanics(t, func() { d = agg.Collect(context.Background()) })

	assert.Equal(t, MetadataUnavailable, d.Metadata.Advisory)
	require.True(t, d.Limerick.Available())
	assert.Equal(t, 2, d.Limerick.Value().WordCount)
}

func TestCollect_DisabledMetadata(t *testing.T) {
	logger := zap.NewNop()
	client := &fakeMetadataClient{values: allMetadata()}
	agg := NewAggregator(
		NewMetadataProbe(client, false, 0, logger),
		NewFileStatProbe(writeWords(t, "x"), logger),
		logger,
	)

	d := agg.Collect(context.Background())

	assert.True(t, d.Metadata.IsEmpty())
	assert.Empty(t, client.calls)
}
