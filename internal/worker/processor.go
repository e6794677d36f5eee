// Package worker runs background label inspection behind asynq.
package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	pdfutil "github.com/dharsanguruparan/LabelDrop/internal/pdf"
	"github.com/dharsanguruparan/LabelDrop/internal/queue"
)

// Records is the record store surface the worker touches.
type Records interface {
	Get(ctx context.Context, id string) (*model.UploadRecord, error)
	SetPageCounts(ctx context.Context, id string, pages []int) error
}

// Blobs reads stored objects.
type Blobs interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	records Records
	blobs   Blobs
	logger  *zap.Logger
	count   func([]byte) (int, error)
}

// NewProcessor constructs a worker processor.
func NewProcessor(records Records, blobs Blobs, logger *zap.Logger) *Processor {
	return &Processor{records: records, blobs: blobs, logger: logger, count: pdfutil.PageCount}
}

// Handler registers the inspection handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.InspectLabelTask, p.HandleInspect)
	return mux
}

// HandleInspect counts the pages of every file of a record and stores them.
// Records that are gone or files that do not parse are not retried.
func (p *Processor) HandleInspect(ctx context.Context, task *asynq.Task) (err error) {
	defer func() {
		metrics.InspectionsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	}()
	payload, err := queue.ParseInspectPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := p.logger.With(zap.String("id", payload.RecordID))

	rec, err := p.records.Get(ctx, payload.RecordID)
	if err != nil {
		if model.IsKind(err, model.ErrNotFound) {
			log.Warn("record vanished before inspection")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	pages := make([]int, len(rec.Files))
	for i, f := range rec.Files {
		data, err := p.blobs.Fetch(ctx, f.Path)
		if err != nil {
			log.Warn("fetch label failed", zap.String("path", f.Path), zap.Error(err))
			return err
		}
		n, err := p.count(data)
		if err != nil {
			log.Warn("label is not a readable pdf", zap.String("path", f.Path), zap.Error(err))
			return fmt.Errorf("inspect %s: %v: %w", f.Path, err, asynq.SkipRetry)
		}
		pages[i] = n
	}
	if err := p.records.SetPageCounts(ctx, rec.ID, pages); err != nil {
		return err
	}
	log.Info("labels inspected", zap.Ints("pages", pages))
	return nil
}
