package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

func newRecord(product string) *model.UploadRecord {
	return model.NewUploadRecord(product, "", 1, []model.FileRef{{Name: "a.pdf", Path: "etiquetas/1_a.pdf"}})
}

func TestCreateAssignsIdentity(t *testing.T) {
	s := New()
	rec := newRecord("Fuxion")
	require.NoError(t, s.Create(context.Background(), rec))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.PrintedAt)
}

func TestCreateRejectsEmptyFiles(t *testing.T) {
	s := New()
	err := s.Create(context.Background(), model.NewUploadRecord("x", "", 1, nil))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestListRecentNewestFirstAndLimited(t *testing.T) {
	s := New()
	var ids []string
	for i := 0; i < 5; i++ {
		rec := newRecord("p")
		require.NoError(t, s.Create(context.Background(), rec))
		ids = append(ids, rec.ID)
	}
	got, err := s.ListRecent(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ids[4], got[0].ID)
	assert.Equal(t, ids[3], got[1].ID)
	assert.Equal(t, ids[2], got[2].ID)
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord("p")
	require.NoError(t, s.Create(ctx, rec))

	at, err := s.UpdateStatus(ctx, rec.ID, model.StatusPending, model.StatusPrinted)
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	_, err = s.UpdateStatus(ctx, rec.ID, model.StatusPending, model.StatusPrinted)
	assert.ErrorIs(t, err, model.ErrIllegalTransition)

	_, err = s.UpdateStatus(ctx, rec.ID, model.StatusPrinted, model.StatusShipped)
	require.NoError(t, err)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipped, got.Status)
	require.NotNil(t, got.PrintedAt)
	require.NotNil(t, got.ShippedAt)

	_, err = s.UpdateStatus(ctx, "missing", model.StatusPending, model.StatusPrinted)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord("p")
	require.NoError(t, s.Create(ctx, rec))
	rec.Files[0].Name = "changed.pdf"

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got.Files[0].Name)
}

func TestSetPageCounts(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := newRecord("p")
	require.NoError(t, s.Create(ctx, rec))

	require.NoError(t, s.SetPageCounts(ctx, rec.ID, []int{3}))
	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Files[0].Pages)

	assert.ErrorIs(t, s.SetPageCounts(ctx, rec.ID, []int{1, 2}), model.ErrValidation)
}

func TestDenyReads(t *testing.T) {
	s := New()
	s.DenyReads = true
	_, err := s.ListRecent(context.Background(), 50)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
}

func TestListenWakesOnWrite(t *testing.T) {
	s := New()
	feed, err := s.Listen(context.Background())
	require.NoError(t, err)
	defer feed.Close()

	require.NoError(t, s.Create(context.Background(), newRecord("p")))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, feed.Next(ctx))
}

func TestClosedFeedIsUnregistered(t *testing.T) {
	s := New()
	feed, err := s.Listen(context.Background())
	require.NoError(t, err)
	feed.Close()
	feed.Close()

	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Empty(t, s.listeners)
}
