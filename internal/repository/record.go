package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

const recordColumns = `id, producto, nombre, tipo, cantidad, archivos, creado_en,
	estado, impreso_en, enviado_en, despachado_en`

// RecordRepository wraps all SQL used by the workflows and the worker.
type RecordRepository struct {
	db   DBTX
	pool acquirer
}

// NewRecordRepository constructs a repository on top of a pool.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{db: pool, pool: pool}
}

// Create inserts rec. The repository assigns the ID and the database assigns
// creado_en, which is copied back into rec.
func (r *RecordRepository) Create(ctx context.Context, rec *model.UploadRecord) error {
	if len(rec.Files) == 0 {
		return model.WrapError(model.ErrValidation, "insert record", errors.New("record has no files"))
	}
	files, err := json.Marshal(rec.Files)
	if err != nil {
		return model.WrapError(model.ErrPersistence, "encode files", err)
	}
	if rec.Status == "" {
		rec.Status = model.StatusPending
	}
	rec.ID = uuid.NewString()
	row := r.db.QueryRow(ctx, `
		INSERT INTO subidas (id, producto, nombre, tipo, cantidad, archivos, estado)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING creado_en
	`, rec.ID, rec.Product, rec.DisplayName, rec.Kind, rec.Quantity, string(files), string(rec.Status))
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return mapError("insert record", err)
	}
	return nil
}

// Get returns a record by id.
func (r *RecordRepository) Get(ctx context.Context, id string) (*model.UploadRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM subidas WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		return nil, mapError("select record", err)
	}
	return rec, nil
}

// ListRecent returns at most limit records, newest first.
func (r *RecordRepository) ListRecent(ctx context.Context, limit int) ([]model.UploadRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM subidas
		ORDER BY creado_en DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapError("list records", err)
	}
	defer rows.Close()
	out := make([]model.UploadRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, mapError("scan record", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate records", err)
	}
	return out, nil
}

// UpdateStatus moves id from one status to the next and stamps the matching
// timestamp column with the database clock. The WHERE clause on the current
// status turns a stale or repeated request into ErrIllegalTransition instead
// of a second write.
func (r *RecordRepository) UpdateStatus(ctx context.Context, id string, from, to model.Status) (time.Time, error) {
	column, err := stampColumn(to)
	if err != nil {
		return time.Time{}, err
	}
	var at time.Time
	err = r.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE subidas
		SET estado = $2, %[1]s = now()
		WHERE id = $1 AND estado = $3
		RETURNING %[1]s
	`, column), id, string(to), string(from)).Scan(&at)
	if err == nil {
		return at, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, mapError("update status", err)
	}
	var current string
	if err := r.db.QueryRow(ctx, `SELECT estado FROM subidas WHERE id = $1`, id).Scan(&current); err != nil {
		return time.Time{}, mapError("update status", err)
	}
	return time.Time{}, model.WrapError(model.ErrIllegalTransition, "update status",
		fmt.Errorf("record %s is %s, expected %s", id, current, from))
}

// SetPageCounts stores the page count of each attached file, in order.
func (r *RecordRepository) SetPageCounts(ctx context.Context, id string, pages []int) error {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if len(pages) != len(rec.Files) {
		return model.WrapError(model.ErrValidation, "set page counts",
			fmt.Errorf("got %d counts for %d files", len(pages), len(rec.Files)))
	}
	for i := range rec.Files {
		rec.Files[i].Pages = pages[i]
	}
	files, err := json.Marshal(rec.Files)
	if err != nil {
		return model.WrapError(model.ErrPersistence, "encode files", err)
	}
	tag, err := r.db.Exec(ctx, `UPDATE subidas SET archivos = $2 WHERE id = $1`, id, string(files))
	if err != nil {
		return mapError("set page counts", err)
	}
	if tag.RowsAffected() == 0 {
		return model.WrapError(model.ErrNotFound, "set page counts", fmt.Errorf("record %s", id))
	}
	return nil
}

func stampColumn(to model.Status) (string, error) {
	switch to {
	case model.StatusPrinted:
		return "impreso_en", nil
	case model.StatusShipped:
		return "enviado_en", nil
	}
	return "", model.WrapError(model.ErrValidation, "update status", fmt.Errorf("no transition into %q", to))
}

func scanRecord(row pgx.Row) (*model.UploadRecord, error) {
	var (
		rec    model.UploadRecord
		files  []byte
		status string
	)
	if err := row.Scan(&rec.ID, &rec.Product, &rec.DisplayName, &rec.Kind, &rec.Quantity, &files,
		&rec.CreatedAt, &status, &rec.PrintedAt, &rec.ShippedAt, &rec.DispatchedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(files, &rec.Files); err != nil {
		return nil, fmt.Errorf("decode archivos of %s: %w", rec.ID, err)
	}
	rec.Status = model.Status(status)
	return &rec, nil
}
