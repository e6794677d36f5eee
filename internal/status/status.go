// Package status moves upload records through pendiente → impreso → enviado.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/metrics"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// Store is the part of the record store the workflow needs.
type Store interface {
	Get(ctx context.Context, id string) (*model.UploadRecord, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status) (time.Time, error)
}

// Workflow applies transitions. Concurrent requests for the same record are
// rejected while one is running; the store's conditional update catches the
// rest.
type Workflow struct {
	store    Store
	logger   *zap.Logger
	inFlight sync.Map
}

// New constructs a Workflow.
func New(store Store, logger *zap.Logger) *Workflow {
	return &Workflow{store: store, logger: logger}
}

// Advance moves record id into target. Only impreso and enviado are valid
// targets, and only from their single predecessor.
func (w *Workflow) Advance(ctx context.Context, id string, target model.Status) (err error) {
	defer func() {
		metrics.TransitionsTotal.WithLabelValues(string(target), outcome(err)).Inc()
	}()
	from, ok := target.Previous()
	if !ok {
		return model.WrapError(model.ErrValidation, "advance", fmt.Errorf("%q is not a transition target", target))
	}
	if _, busy := w.inFlight.LoadOrStore(id, struct{}{}); busy {
		return model.WrapError(model.ErrInFlight, "advance", fmt.Errorf("record %s", id))
	}
	defer w.inFlight.Delete(id)

	rec, err := w.store.Get(ctx, id)
	if err != nil {
		return w.storeError("load record", err)
	}
	if current := rec.EffectiveStatus(); current != from {
		return model.WrapError(model.ErrIllegalTransition, "advance",
			fmt.Errorf("record %s is %s, cannot become %s", id, current, target))
	}
	at, err := w.store.UpdateStatus(ctx, id, rec.Status, target)
	if err != nil {
		return w.storeError("update status", err)
	}
	w.logger.Info("status changed",
		zap.String("id", id),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.Time("at", at))
	return nil
}

// MarkPrinted moves a pending record to impreso.
func (w *Workflow) MarkPrinted(ctx context.Context, id string) error {
	return w.Advance(ctx, id, model.StatusPrinted)
}

// MarkShipped moves a printed record to enviado.
func (w *Workflow) MarkShipped(ctx context.Context, id string) error {
	return w.Advance(ctx, id, model.StatusShipped)
}

// storeError keeps the kinds the stores already assign and files anything
// else under ErrPersistence.
func (w *Workflow) storeError(op string, err error) error {
	for _, kind := range []error{model.ErrNotFound, model.ErrIllegalTransition, model.ErrPermissionDenied, model.ErrValidation, model.ErrPersistence} {
		if model.IsKind(err, kind) {
			return err
		}
	}
	w.logger.Error("status store failure", zap.String("op", op), zap.Error(err))
	return model.WrapError(model.ErrPersistence, op, err)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case model.IsKind(err, model.ErrInFlight):
		return "busy"
	case model.IsKind(err, model.ErrIllegalTransition):
		return "stale"
	}
	return "error"
}
