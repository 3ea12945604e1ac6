package store

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"housekeeping-backend/internal/errs"
	"housekeeping-backend/internal/parse"
)

// omitted collects columns a deployed schema turned out not to have, keyed
// by table. The "" key applies to every table.
type omitted map[string][]string

func (o omitted) cols(table string) []string {
	return append(append([]string(nil), o[table]...), o[""]...)
}

// write runs fn in a transaction. When the store rejects a column it does
// not have, the whole transaction is retried once without that column.
func (s *gormStore) write(ctx context.Context, fn func(tx *gorm.DB, o omitted) error) error {
	o := omitted{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error { return fn(tx, o) })
	col, drifted := missingColumn(err)
	if !drifted {
		return err
	}

	log.Printf("Warning: table %q has no column %q, retrying without it", col.Table, col.Name)
	o[col.Table] = append(o[col.Table], col.Name)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error { return fn(tx, o) })
	if again, ok := missingColumn(err); ok {
		return &errs.SchemaDriftError{Table: again.Table, Column: again.Name, Err: err}
	}
	return err
}

// missingColumn reports whether err is an undefined-column error from
// PostgreSQL (SQLSTATE 42703) or SQLite.
func missingColumn(err error) (parse.Column, bool) {
	if err == nil {
		return parse.Column{}, false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "42703" {
			return parse.Column{}, false
		}
		col, ok := parse.MissingColumn(pgErr.Message)
		if ok && col.Table == "" {
			col.Table = pgErr.TableName
		}
		return col, ok
	}
	return parse.MissingColumn(err.Error())
}
