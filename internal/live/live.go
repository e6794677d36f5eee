// Package live turns a record store change feed into a subscription that
// yields the full, ordered recent window after every change.
package live

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// Feed blocks in Next until the watched records change.
type Feed interface {
	Next(ctx context.Context) error
	Close()
}

// Source is a record store that can list its newest records and notify about
// changes.
type Source interface {
	ListRecent(ctx context.Context, limit int) ([]model.UploadRecord, error)
	Listen(ctx context.Context) (Feed, error)
}

// Snapshot is a complete, consistent view of the recent window, newest first.
type Snapshot struct {
	Records []model.UploadRecord
	At      time.Time
}

// Subscription delivers snapshots until it is closed or fails.
type Subscription struct {
	snapshots chan Snapshot
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *zap.Logger

	mu  sync.Mutex
	err error
}

// Watch starts a subscription. The first snapshot is loaded before Watch
// returns, so a read permission problem is reported to the caller directly.
// The listener is registered before the first read; no change can slip in
// between.
func Watch(ctx context.Context, src Source, limit int, logger *zap.Logger) (*Subscription, error) {
	feed, err := src.Listen(ctx)
	if err != nil {
		return nil, model.WrapError(model.ErrSubscription, "listen", err)
	}
	records, err := src.ListRecent(ctx, limit)
	if err != nil {
		feed.Close()
		return nil, model.WrapError(model.ErrSubscription, "initial snapshot", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		snapshots: make(chan Snapshot, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    logger,
	}
	sub.publish(Snapshot{Records: records, At: time.Now().UTC()})
	go sub.run(ctx, src, feed, limit)
	return sub, nil
}

// Snapshots is closed when the subscription ends; check Err afterwards.
func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

// Err returns the failure that ended the subscription, or nil after Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and releases its listener. Safe to call twice.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription) run(ctx context.Context, src Source, feed Feed, limit int) {
	defer close(s.done)
	defer close(s.snapshots)
	defer feed.Close()
	for {
		if err := feed.Next(ctx); err != nil {
			s.fail(ctx, model.WrapError(model.ErrSubscription, "wait for change", err))
			return
		}
		records, err := src.ListRecent(ctx, limit)
		if err != nil {
			s.fail(ctx, model.WrapError(model.ErrSubscription, "reload snapshot", err))
			return
		}
		s.publish(Snapshot{Records: records, At: time.Now().UTC()})
	}
}

// publish keeps only the latest snapshot when the consumer falls behind. This
// goroutine is the only sender, so the second send cannot block.
func (s *Subscription) publish(snap Snapshot) {
	metrics.SnapshotsTotal.Inc()
	select {
	case s.snapshots <- snap:
		return
	default:
	}
	select {
	case <-s.snapshots:
	default:
	}
	s.snapshots <- snap
}

func (s *Subscription) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Warn("live subscription ended", zap.Error(err))
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
