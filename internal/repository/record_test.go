package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

var columns = []string{"id", "producto", "nombre", "tipo", "cantidad", "archivos", "creado_en",
	"estado", "impreso_en", "enviado_en", "despachado_en"}

func newRepoWithMock(t *testing.T) (*RecordRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &RecordRepository{db: mock}, mock
}

func TestCreateAssignsIDAndServerTimestamp(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO subidas").
		WithArgs(pgxmock.AnyArg(), "Fuxion - Thermo T3", "", "Fuxion - Thermo T3", 2,
			`[{"name":"a.pdf","url":"u1","path":"p1","bytes":10},{"name":"b.pdf","url":"u2","path":"p2","bytes":20}]`,
			"pendiente").
		WillReturnRows(pgxmock.NewRows([]string{"creado_en"}).AddRow(created))

	rec := model.NewUploadRecord("Fuxion - Thermo T3", "", 2, []model.FileRef{
		{Name: "a.pdf", URL: "u1", Path: "p1", Bytes: 10},
		{Name: "b.pdf", URL: "u2", Path: "p2", Bytes: 20},
	})
	require.NoError(t, repo.Create(context.Background(), rec))

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, created, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsEmptyFiles(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	err := repo.Create(context.Background(), model.NewUploadRecord("x", "", 1, nil))
	assert.True(t, model.IsKind(err, model.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentOrdersAndDecodes(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	t1 := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)
	printed := t1.Add(time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM subidas\\s+ORDER BY creado_en DESC").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("r2", "Termo", "Ana", "Termo", 1, []byte(`[{"name":"b.pdf","url":"u","path":"p","bytes":2048}]`),
				t1, "impreso", &printed, nil, nil).
			AddRow("r1", "", "", "Viejo", 3, []byte(`[{"name":"a.pdf","url":"u","path":"p","bytes":1}]`),
				t0, "despachado", nil, nil, nil))

	recs, err := repo.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "r2", recs[0].ID)
	assert.Equal(t, model.StatusPrinted, recs[0].Status)
	require.NotNil(t, recs[0].PrintedAt)
	assert.Equal(t, printed, *recs[0].PrintedAt)
	assert.Equal(t, int64(2048), recs[0].Files[0].Bytes)
	assert.Equal(t, "Viejo", recs[1].ProductLabel())
	assert.Equal(t, model.StatusShipped, recs[1].EffectiveStatus())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentMapsPermissionDenied(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery("SELECT (.+) FROM subidas").
		WithArgs(50).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.InsufficientPrivilege, Message: "permission denied for table subidas"})

	_, err := repo.ListRecent(context.Background(), 50)
	assert.True(t, model.IsKind(err, model.ErrPermissionDenied))
}

func TestUpdateStatusStampsTimestamp(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE subidas\\s+SET estado = \\$2, impreso_en = now\\(\\)").
		WithArgs("r1", "impreso", "pendiente").
		WillReturnRows(pgxmock.NewRows([]string{"impreso_en"}).AddRow(now))

	at, err := repo.UpdateStatus(context.Background(), "r1", model.StatusPending, model.StatusPrinted)
	require.NoError(t, err)
	assert.Equal(t, now, at)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusStaleIsIllegalTransition(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery("UPDATE subidas\\s+SET estado = \\$2, enviado_en = now\\(\\)").
		WithArgs("r1", "enviado", "impreso").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT estado FROM subidas").
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"estado"}).AddRow("pendiente"))

	_, err := repo.UpdateStatus(context.Background(), "r1", model.StatusPrinted, model.StatusShipped)
	assert.True(t, model.IsKind(err, model.ErrIllegalTransition))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingRecord(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery("UPDATE subidas").
		WithArgs("nope", "impreso", "pendiente").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT estado FROM subidas").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateStatus(context.Background(), "nope", model.StatusPending, model.StatusPrinted)
	assert.True(t, model.IsKind(err, model.ErrNotFound))
}

func TestUpdateStatusRejectsUnknownTarget(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	_, err := repo.UpdateStatus(context.Background(), "r1", model.StatusShipped, model.StatusDispatched)
	assert.True(t, model.IsKind(err, model.ErrValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusWrapsDatabaseErrors(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery("UPDATE subidas").
		WithArgs("r1", "impreso", "pendiente").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.UpdateStatus(context.Background(), "r1", model.StatusPending, model.StatusPrinted)
	assert.True(t, model.IsKind(err, model.ErrPersistence))
}

func TestSetPageCounts(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM subidas WHERE id = \\$1").
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("r1", "Termo", "", "Termo", 1, []byte(`[{"name":"a.pdf","url":"u","path":"p","bytes":1}]`),
				created, "pendiente", nil, nil, nil))
	mock.ExpectExec("UPDATE subidas SET archivos").
		WithArgs("r1", `[{"name":"a.pdf","url":"u","path":"p","bytes":1,"pages":2}]`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetPageCounts(context.Background(), "r1", []int{2}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListenWithoutPool(t *testing.T) {
	repo, _ := newRepoWithMock(t)

	_, err := repo.Listen(context.Background())
	assert.True(t, model.IsKind(err, model.ErrSubscription))
}
