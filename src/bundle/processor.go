package bundle

import (
	"context"
	"time"

	"github.com/mosaicnetworks/dagledger/src/dag"
	"github.com/sirupsen/logrus"
)

// Processor computes bundles from a graph and hands them to a Sink.
type Processor struct {
	sink   Sink
	logger *logrus.Entry
}

// NewProcessor creates a Processor publishing to sink.
func NewProcessor(sink Sink, logger *logrus.Entry) *Processor {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	return &Processor{
		sink:   sink,
		logger: logger,
	}
}

// Run computes the current bundles of g and publishes them.
func (p *Processor) Run(ctx context.Context, g *dag.Graph) ([]Bundle, error) {
	bundles := ProcessAdaptiveBundles(g)

	if err := p.sink.Publish(ctx, bundles); err != nil {
		return nil, err
	}

	return bundles, nil
}

// Loop calls Run every interval until ctx is done. Publish errors are logged
// and do not stop the loop.
func (p *Processor) Loop(ctx context.Context, g *dag.Graph, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			bundles, err := p.Run(ctx, g)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.WithError(err).Error("Publishing bundles")
				continue
			}
			p.logger.WithField("bundles", len(bundles)).Debug("Bundles published")
		}
	}
}
