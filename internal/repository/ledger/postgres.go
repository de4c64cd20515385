package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/kailas-cloud/mailrag/internal/db"
	"github.com/kailas-cloud/mailrag/internal/db/postgres"
	"github.com/kailas-cloud/mailrag/internal/domain"
)

// Postgres stores the ledger in mailrag_ledger. Record is a serializable read-modify-write.
type Postgres struct {
	db *postgres.DB
}

var _ Ledger = (*Postgres)(nil)

// NewPostgres creates the ledger table if needed.
func NewPostgres(ctx context.Context, d *postgres.DB) (*Postgres, error) {
	if err := d.MigrateLedger(ctx); err != nil {
		return nil, storageErr("migrate", err)
	}
	return &Postgres{db: d}, nil
}

// Has reports whether messageID was recorded for owner.
func (l *Postgres) Has(ctx context.Context, owner, messageID string) (bool, error) {
	var ok bool
	err := l.db.SQL().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM mailrag_ledger WHERE owner = $1 AND message_id = $2)`,
		owner, messageID,
	).Scan(&ok)
	if err != nil {
		return false, storageErr("has", postgres.OpErr(db.OpQuery, err))
	}
	return ok, nil
}

// Filter returns which of ids are already recorded.
func (l *Postgres) Filter(ctx context.Context, owner string, ids []string) (map[string]bool, error) {
	known := make(map[string]bool)
	if len(ids) == 0 {
		return known, nil
	}
	if err := selectKnown(ctx, l.db.SQL(), owner, ids, known); err != nil {
		return nil, storageErr("filter", err)
	}
	return known, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func selectKnown(ctx context.Context, q queryer, owner string, ids []string, into map[string]bool) error {
	rows, err := q.QueryContext(ctx,
		`SELECT message_id FROM mailrag_ledger WHERE owner = $1 AND message_id = ANY($2::text[])`,
		owner, pq.Array(ids),
	)
	if err != nil {
		return postgres.OpErr(db.OpQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return postgres.OpErr(db.OpQuery, err)
		}
		into[id] = true
	}
	if err := rows.Err(); err != nil {
		return postgres.OpErr(db.OpQuery, err)
	}
	return nil
}

// Record reads the known ids and inserts the rest in one SERIALIZABLE transaction.
// A concurrent writer on the same owner makes one side fail with domain.ErrConflict.
func (l *Postgres) Record(ctx context.Context, owner string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ids = dedupe(ids)

	var added int
	err := l.db.InTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(tx *sql.Tx) error {
		known := make(map[string]bool, len(ids))
		if err := selectKnown(ctx, tx, owner, ids, known); err != nil {
			return err
		}

		missing := make([]string, 0, len(ids))
		for _, id := range ids {
			if !known[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			return nil
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO mailrag_ledger (owner, message_id)
			 SELECT $1, unnest($2::text[])
			 ON CONFLICT (owner, message_id) DO NOTHING`,
			owner, pq.Array(missing),
		)
		if err != nil {
			return postgres.OpErr(db.OpExec, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return postgres.OpErr(db.OpExec, err)
		}
		added = int(n)
		return nil
	})
	if err != nil {
		if postgres.IsConflict(err) {
			return 0, fmt.Errorf("%w: ledger record: %w", domain.ErrConflict, err)
		}
		return 0, storageErr("record", err)
	}
	return added, nil
}

// Count returns how many ids owner has recorded.
func (l *Postgres) Count(ctx context.Context, owner string) (int, error) {
	var n int
	err := l.db.SQL().QueryRowContext(ctx,
		`SELECT count(*) FROM mailrag_ledger WHERE owner = $1`, owner,
	).Scan(&n)
	if err != nil {
		return 0, storageErr("count", postgres.OpErr(db.OpQuery, err))
	}
	return n, nil
}
