package database

import (
	"context"
	_ "embed"
)

//go:embed schema.sql
var schema string

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, db Querier) error {
	_, err := db.Exec(ctx, schema)
	return err
}
