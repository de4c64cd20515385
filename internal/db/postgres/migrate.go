package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"
)

//go:embed sql/ledger.sql
var ledgerSQL string

//go:embed sql/chunks.sql
var chunksSQL string

var chunksTemplate = template.Must(template.New("chunks").Parse(chunksSQL))

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ChunkSchema parameterizes the chunk table of one collection.
type ChunkSchema struct {
	Table          string
	Dimensions     int
	Metric         string
	M              int
	EFConstruction int
}

// MigrateLedger creates the ledger table.
func (d *DB) MigrateLedger(ctx context.Context) error {
	if _, err := d.sql.ExecContext(ctx, ledgerSQL); err != nil {
		return OpErr(opMigrate, fmt.Errorf("ledger schema: %w", err))
	}
	return nil
}

// MigrateChunks creates the pgvector extension, the collection meta table and the chunk table.
func (d *DB) MigrateChunks(ctx context.Context, s ChunkSchema) error {
	stmt, err := renderChunks(s)
	if err != nil {
		return err
	}
	if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
		return OpErr(opMigrate, fmt.Errorf("chunk schema %s: %w", s.Table, err))
	}
	return nil
}

const opMigrate = "MIGRATE"

func renderChunks(s ChunkSchema) (string, error) {
	if !tableNameRe.MatchString(s.Table) {
		return "", fmt.Errorf("invalid table name %q", s.Table)
	}
	if s.Dimensions <= 0 {
		return "", fmt.Errorf("dimensions must be positive, got %d", s.Dimensions)
	}
	if s.M <= 0 {
		s.M = 16
	}
	if s.EFConstruction <= 0 {
		s.EFConstruction = 64
	}

	var b strings.Builder
	if err := chunksTemplate.Execute(&b, s); err != nil {
		return "", fmt.Errorf("render chunk schema: %w", err)
	}
	return b.String(), nil
}

// TableName derives a safe chunk table name from a collection name.
func TableName(collection string) string {
	var b strings.Builder
	b.WriteString("mailrag_")
	for _, r := range strings.ToLower(collection) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteString("_chunks")
	name := b.String()
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}
