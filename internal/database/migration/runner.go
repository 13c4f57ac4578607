package migration

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const lockKey int64 = 812440173

//go:embed sql/*.sql
var embedded embed.FS

const createSchemaMigrations = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	checksum TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Runner applies the V<version>__<name>.sql files in version order, each in
// its own transaction. An applied file whose content later changes stops the
// run with a *DriftError.
type Runner struct {
	// FS holds the migration files at its root. Nil means the embedded set.
	FS     fs.FS
	Logger *log.Logger
}

type Migration struct {
	Version  int64
	Name     string
	SQL      string
	Checksum string
}

type DriftError struct {
	Version int64
	Name    string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("migration V%d (%s) changed after it was applied", e.Version, e.Name)
}

type appliedMigration struct {
	Version  int64
	Checksum string
}

func (r Runner) Run(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return errors.New("migration: nil pool")
	}
	logger := r.Logger
	if logger == nil {
		logger = log.Default()
	}

	fsys := r.FS
	if fsys == nil {
		sub, err := fs.Sub(embedded, "sql")
		if err != nil {
			return err
		}
		fsys = sub
	}
	migs, err := loadMigrations(fsys)
	if err != nil {
		return err
	}
	if len(migs) == 0 {
		return nil
	}

	// The advisory lock is held by the session, so every statement below
	// runs on this one connection.
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("migration: acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockKey); err != nil {
		return fmt.Errorf("migration: lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockKey)
	}()

	if _, err := conn.Exec(ctx, createSchemaMigrations); err != nil {
		return fmt.Errorf("migration: ensure schema_migrations: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("migration: read applied: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowToStructByPos[appliedMigration])
	if err != nil {
		return fmt.Errorf("migration: read applied: %w", err)
	}

	todo, err := pending(migs, applied)
	if err != nil {
		return err
	}
	for _, m := range todo {
		start := time.Now()
		err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`,
				m.Version, m.Name, m.Checksum,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration V%d (%s): %w", m.Version, m.Name, err)
		}
		logger.Printf("component=migration action=apply version=%d name=%s status=ok took=%s", m.Version, m.Name, time.Since(start))
	}
	logger.Printf("component=migration action=run status=ok applied=%d total=%d", len(todo), len(migs))
	return nil
}

// pending returns the migrations not yet recorded, in order. A recorded
// version whose checksum differs from the file on disk is a *DriftError.
func pending(migs []Migration, applied []appliedMigration) ([]Migration, error) {
	done := make(map[int64]string, len(applied))
	for _, a := range applied {
		done[a.Version] = a.Checksum
	}
	var out []Migration
	for _, m := range migs {
		sum, ok := done[m.Version]
		if !ok {
			out = append(out, m)
			continue
		}
		if sum != m.Checksum {
			return nil, &DriftError{Version: m.Version, Name: m.Name}
		}
	}
	return out, nil
}

var fileRe = regexp.MustCompile(`^V(\d+)__([A-Za-z0-9_.-]+)\.sql$`)

func loadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var migs []Migration
	seen := map[int64]string{}
	for _, e := range entries {
		m := fileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		v, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", e.Name(), err)
		}
		if prev, dup := seen[v]; dup {
			return nil, fmt.Errorf("migration version %d used by %s and %s", v, prev, e.Name())
		}
		seen[v] = e.Name()

		b, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		body := strings.TrimSpace(string(b))
		if body == "" {
			return nil, fmt.Errorf("migration %s is empty", e.Name())
		}
		sum := sha256.Sum256([]byte(body))
		migs = append(migs, Migration{Version: v, Name: m[2], SQL: body, Checksum: hex.EncodeToString(sum[:])})
	}

	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs, nil
}
