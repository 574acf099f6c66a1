package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

func init() {
	goose.AddMigrationContext(upProcessorTimestamps, downProcessorTimestamps)
}

// upProcessorTimestamps adds created_at / updated_at to the processor table and
// backfills rows inserted before the columns existed with the migration time.
func upProcessorTimestamps(ctx context.Context, tx *sql.Tx) error {
	alterQuery := `
		ALTER TABLE processor ADD COLUMN created_at TEXT;
		ALTER TABLE processor ADD COLUMN updated_at TEXT;
	`
	_, err := tx.ExecContext(ctx, alterQuery)
	if err != nil {
		return fmt.Errorf("adding timestamp columns : %w", err)
	}

	rows, err := tx.QueryContext(ctx, "SELECT id FROM processor")
	if err != nil {
		return fmt.Errorf("getting all rows: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating rows: %w", err)
	}
	rows.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range ids {
		_, err = tx.ExecContext(ctx, "UPDATE processor SET created_at = ?, updated_at = ? WHERE id = ?", now, now, id)
		if err != nil {
			return fmt.Errorf("backfilling row %d : %w", id, err)
		}
	}
	return nil
}

func downProcessorTimestamps(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `ALTER TABLE processor DROP COLUMN created_at`); err != nil {
		return fmt.Errorf("dropping created_at column for rollback: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `ALTER TABLE processor DROP COLUMN updated_at`); err != nil {
		return fmt.Errorf("dropping updated_at column for rollback: %w", err)
	}
	return nil
}
