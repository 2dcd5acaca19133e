// loadgen/generator.go

package loadgen

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Feed represents a single simulated price source in the load test.
type Feed struct {
	Instrument     string
	PublishRate    float64 // prices per second
	PriceGenerator PriceGenerator
}

// LoadGenerator orchestrates the load test.
type LoadGenerator struct {
	publisher      Publisher
	feeds          []*Feed
	logger         zerolog.Logger
	publishedCount int64 // Counter for successful publishes.
}

// NewLoadGenerator creates a new LoadGenerator.
func NewLoadGenerator(publisher Publisher, feeds []*Feed, logger zerolog.Logger) *LoadGenerator {
	return &LoadGenerator{
		publisher: publisher,
		feeds:     feeds,
		logger:    logger.With().Str("component", "LoadGenerator").Logger(),
	}
}

// Run drives every feed for the given duration and returns the total number
// of successfully published prices. The first publish or generation error
// stops the run early.
func (lg *LoadGenerator) Run(ctx context.Context, duration time.Duration) (int, error) {
	atomic.StoreInt64(&lg.publishedCount, 0) // Reset counter for each run.
	lg.logger.Info().Int("num_feeds", len(lg.feeds)).Dur("duration", duration).Msg("Starting load generator")

	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)
	for _, feed := range lg.feeds {
		feed := feed
		g.Go(func() error {
			return lg.runFeed(gCtx, feed)
		})
	}

	err := g.Wait()
	finalCount := int(atomic.LoadInt64(&lg.publishedCount))
	lg.logger.Info().Int("successful_publishes", finalCount).Msg("Load generator finished")
	return finalCount, err
}

// runFeed publishes generated prices at the feed's rate until ctx ends.
func (lg *LoadGenerator) runFeed(ctx context.Context, feed *Feed) error {
	if feed.PublishRate <= 0 {
		lg.logger.Warn().Str("instrument", feed.Instrument).Msg("Feed has a publish rate of 0, no prices will be sent")
		return nil
	}

	interval := time.Duration(float64(time.Second) / feed.PublishRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lg.logger.Info().Str("instrument", feed.Instrument).Float64("rate_hz", feed.PublishRate).Dur("interval", interval).Msg("Feed starting")

	for {
		select {
		case <-ctx.Done():
			lg.logger.Info().Str("instrument", feed.Instrument).Msg("Feed stopping")
			return nil
		case <-ticker.C:
			price, err := feed.PriceGenerator.GeneratePrice(feed)
			if err != nil {
				lg.logger.Error().Err(err).Str("instrument", feed.Instrument).Msg("Failed to generate price")
				return err
			}
			if err := lg.publisher.Publish(ctx, price); err != nil {
				// A publish rejected because the run deadline passed is not a
				// failure of the target.
				if ctx.Err() != nil {
					return nil
				}
				lg.logger.Error().Err(err).Str("instrument", feed.Instrument).Msg("Failed to publish price")
				return err
			}
			atomic.AddInt64(&lg.publishedCount, 1)
		}
	}
}
