package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/memstore"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/queue"
)

type mapBlobs map[string][]byte

func (m mapBlobs) Fetch(_ context.Context, key string) ([]byte, error) {
	data, ok := m[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func newProcessor(store *memstore.Store, blobs mapBlobs) *Processor {
	p := NewProcessor(store, blobs, zap.NewNop())
	p.count = func(data []byte) (int, error) {
		if string(data) == "broken" {
			return 0, errors.New("bad xref")
		}
		return len(data), nil
	}
	return p
}

func seed(t *testing.T, store *memstore.Store) *model.UploadRecord {
	t.Helper()
	rec := model.NewUploadRecord("p", "", 1, []model.FileRef{
		{Name: "a.pdf", Path: "etiquetas/1_a.pdf"},
		{Name: "b.pdf", Path: "etiquetas/2_b.pdf"},
	})
	require.NoError(t, store.Create(context.Background(), rec))
	return rec
}

func task(t *testing.T, id string) *asynq.Task {
	t.Helper()
	tk, err := queue.NewInspectTask(id)
	require.NoError(t, err)
	return tk
}

func TestHandleInspectStoresPageCounts(t *testing.T) {
	store := memstore.New()
	rec := seed(t, store)
	p := newProcessor(store, mapBlobs{"etiquetas/1_a.pdf": []byte("x"), "etiquetas/2_b.pdf": []byte("xyz")})

	require.NoError(t, p.HandleInspect(context.Background(), task(t, rec.ID)))

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Files[0].Pages)
	assert.Equal(t, 3, got.Files[1].Pages)
}

func TestHandleInspectSkipsRetryForMissingRecord(t *testing.T) {
	p := newProcessor(memstore.New(), mapBlobs{})
	err := p.HandleInspect(context.Background(), task(t, "gone"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleInspectSkipsRetryForUnreadablePDF(t *testing.T) {
	store := memstore.New()
	rec := seed(t, store)
	p := newProcessor(store, mapBlobs{"etiquetas/1_a.pdf": []byte("broken"), "etiquetas/2_b.pdf": []byte("x")})

	err := p.HandleInspect(context.Background(), task(t, rec.ID))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Files[0].Pages)
}

func TestHandleInspectRetriesFetchFailure(t *testing.T) {
	store := memstore.New()
	rec := seed(t, store)
	p := newProcessor(store, mapBlobs{})

	err := p.HandleInspect(context.Background(), task(t, rec.ID))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleInspectRejectsBadPayload(t *testing.T) {
	p := newProcessor(memstore.New(), mapBlobs{})
	err := p.HandleInspect(context.Background(), asynq.NewTask(queue.InspectLabelTask, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
