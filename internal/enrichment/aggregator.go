package enrichment

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dashboard is the enrichment part of the dashboard view.
type Dashboard struct {
	Metadata Metadata
	Limerick Result[FileStat]
}

type Aggregator struct {
	metadata *MetadataProbe
	files    *FileStatProbe
	logger   *zap.Logger
}

func NewAggregator(metadata *MetadataProbe, files *FileStatProbe, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		metadata: metadata,
		files:    files,
		logger:   logger,
	}
}

// Collect runs both probes concurrently. Each runs behind its own recover
// boundary and neither can cancel the other; Collect never fails.
func (a *Aggregator) Collect(ctx context.Context) Dashboard {
	var d Dashboard
	var g errgroup.Group

	g.Go(func() error {
		defer a.recoverProbe("metadata", func(string) {
			d.Metadata = Metadata{Advisory: MetadataUnavailable}
		})
		d.Metadata = a.metadata.Probe(ctx)
		return nil
	})
	g.Go(func() error {
		defer a.recoverProbe("file", func(reason string) {
			d.Limerick = Unavailable[FileStat](reason)
		})
		d.Limerick = a.files.Probe(ctx)
		return nil
	})

	_ = g.Wait()
	return d
}

func (a *Aggregator) recoverProbe(name string, fallback func(reason string)) {
	if r := recover(); r != nil {
		a.logger.Error("Enrichment probe panicked", zap.String("probe", name), zap.Any("panic", r))
		fallback(fmt.Sprintf("%s data is temporarily unavailable.", name))
	}
}
