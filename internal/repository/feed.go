package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/LabelDrop/internal/live"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// ChangeChannel is the NOTIFY channel fed by the subidas trigger.
const ChangeChannel = "subidas_changed"

// Listen parks a dedicated connection in LISTEN and returns it as a feed.
func (r *RecordRepository) Listen(ctx context.Context) (live.Feed, error) {
	if r.pool == nil {
		return nil, model.WrapError(model.ErrSubscription, "listen", errNoPool)
	}
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, mapError("acquire listener", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		conn.Release()
		return nil, mapError("listen", err)
	}
	return &pgFeed{conn: conn}, nil
}

type pgFeed struct {
	conn *pgxpool.Conn
}

func (f *pgFeed) Next(ctx context.Context) error {
	_, err := f.conn.Conn().WaitForNotification(ctx)
	return err
}

// Close unlistens on a best-effort basis. A wait cancelled by its context
// leaves the connection closed; the pool discards it on Release.
func (f *pgFeed) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !f.conn.Conn().IsClosed() {
		_, _ = f.conn.Exec(ctx, "UNLISTEN *")
	}
	f.conn.Release()
}
