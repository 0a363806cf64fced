package bot

import (
	"context"
	"time"

	"github.com/onyxservices/dispatch/internal/rolesync"
	"github.com/rs/zerolog"
)

// syncWorker periodically re-syncs every guild member's role.
type syncWorker struct {
	syncer   guildSyncer
	stopChan chan struct{}
	done     chan struct{}
	ticker   *time.Ticker
	interval time.Duration
	log      zerolog.Logger
}

type guildSyncer interface {
	SyncGuild(ctx context.Context) (*rolesync.Report, error)
}

func newSyncWorker(syncer guildSyncer, interval time.Duration, log zerolog.Logger) *syncWorker {
	return &syncWorker{
		syncer:   syncer,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		interval: interval,
		log:      log.With().Str("worker", "role_sync").Logger(),
	}
}

func (w *syncWorker) start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

// stop waits for an in-flight sync to be cancelled.
func (w *syncWorker) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
		<-w.done
	}
}

func (w *syncWorker) loop() {
	defer close(w.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

func (w *syncWorker) tick(ctx context.Context) {
	// A sync may not run longer than the gap between two ticks.
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	started := time.Now()
	report, err := w.syncer.SyncGuild(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("scheduled role sync failed")
		return
	}
	w.log.Info().
		Int("total", report.Total).
		Int("updated", report.Updated).
		Int("created", report.Created).
		Int("errors", len(report.Errors)).
		Dur("took", time.Since(started)).
		Msg("scheduled role sync complete")
}
