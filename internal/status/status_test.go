package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/memstore"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

func seed(t *testing.T, store *memstore.Store) string {
	t.Helper()
	rec := model.NewUploadRecord("Fuxion - Thermo T3", "", 2, []model.FileRef{{Name: "a.pdf"}, {Name: "b.pdf"}})
	require.NoError(t, store.Create(context.Background(), rec))
	return rec.ID
}

func TestFullLifecycle(t *testing.T) {
	store := memstore.New()
	w := New(store, zap.NewNop())
	ctx := context.Background()
	id := seed(t, store)

	require.NoError(t, w.MarkPrinted(ctx, id))
	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPrinted, rec.Status)
	require.NotNil(t, rec.PrintedAt)
	printedAt := *rec.PrintedAt
	assert.Nil(t, rec.ShippedAt)

	require.NoError(t, w.MarkShipped(ctx, id))
	rec, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, rec.Status)
	require.NotNil(t, rec.ShippedAt)
	assert.Equal(t, printedAt, *rec.PrintedAt)
}

func TestShippedOnlyFromPrinted(t *testing.T) {
	store := memstore.New()
	w := New(store, zap.NewNop())
	id := seed(t, store)

	err := w.MarkShipped(context.Background(), id)
	require.ErrorIs(t, err, model.ErrIllegalTransition)
	assert.Equal(t, model.MsgStatusStale, model.UserMessage(err))

	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Nil(t, rec.ShippedAt)
}

func TestRepeatedPrintIsRejected(t *testing.T) {
	store := memstore.New()
	w := New(store, zap.NewNop())
	id := seed(t, store)

	require.NoError(t, w.MarkPrinted(context.Background(), id))
	assert.ErrorIs(t, w.MarkPrinted(context.Background(), id), model.ErrIllegalTransition)
}

func TestLegacyDispatchedOffersNothing(t *testing.T) {
	store := memstore.New()
	store.Put(model.UploadRecord{ID: "old", Status: model.StatusDispatched, Files: []model.FileRef{{Name: "x.pdf"}}})
	w := New(store, zap.NewNop())

	assert.ErrorIs(t, w.MarkShipped(context.Background(), "old"), model.ErrIllegalTransition)
	assert.ErrorIs(t, w.MarkPrinted(context.Background(), "old"), model.ErrIllegalTransition)
}

func TestInvalidTarget(t *testing.T) {
	w := New(memstore.New(), zap.NewNop())
	for _, target := range []model.Status{model.StatusPending, model.StatusDispatched, "archivado"} {
		assert.ErrorIs(t, w.Advance(context.Background(), "id", target), model.ErrValidation, string(target))
	}
}

func TestMissingRecord(t *testing.T) {
	w := New(memstore.New(), zap.NewNop())
	err := w.MarkPrinted(context.Background(), "nope")
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, model.MsgNotFound, model.UserMessage(err))
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*model.UploadRecord, error) {
	return &model.UploadRecord{ID: "x", Status: model.StatusPending}, nil
}

func (brokenStore) UpdateStatus(context.Context, string, model.Status, model.Status) (time.Time, error) {
	return time.Time{}, errors.New("connection reset")
}

func TestStoreFailureIsPersistence(t *testing.T) {
	w := New(brokenStore{}, zap.NewNop())
	err := w.MarkPrinted(context.Background(), "x")
	require.ErrorIs(t, err, model.ErrPersistence)
	assert.Equal(t, model.MsgStatusFailed, model.UserMessage(err))
}

type gatedStore struct {
	*memstore.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.Store.Get(ctx, id)
}

func TestConcurrentAdvanceIsRejected(t *testing.T) {
	mem := memstore.New()
	id := seed(t, mem)
	store := &gatedStore{Store: mem, entered: make(chan struct{}, 1), release: make(chan struct{})}
	w := New(store, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- w.MarkPrinted(context.Background(), id) }()
	<-store.entered

	err := w.MarkPrinted(context.Background(), id)
	require.ErrorIs(t, err, model.ErrInFlight)
	assert.Equal(t, model.MsgBusy, model.UserMessage(err))

	close(store.release)
	require.NoError(t, <-done)

	// The guard is released once the first request finished.
	assert.NoError(t, w.MarkShipped(context.Background(), id))
}
