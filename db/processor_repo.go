package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rankdesk/rankdesk/domain"
)

var _ domain.ProcessorRepository = (*Repository)(nil)

// dbProcessor represents a processor ranking row as stored in the database.
// Empty fields are stored as NULL so the API reports them as missing.
type dbProcessor struct {
	ID         int64          `db:"id"`
	Processor  sql.NullString `db:"processor"`
	Rating     sql.NullString `db:"rating"`
	Antutu10   sql.NullString `db:"antutu_10"`
	Geekbench6 sql.NullString `db:"geekbench_6"`
	Cores      sql.NullString `db:"cores"`
	Clock      sql.NullString `db:"clock"`
	GPU        sql.NullString `db:"gpu"`
	CreatedAt  sql.NullString `db:"created_at"`
	UpdatedAt  sql.NullString `db:"updated_at"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// toDomainProcessor converts a dbProcessor to a domain.Processor.
// NULL columns become empty strings; defaulting is left to the client-side mapping.
func toDomainProcessor(dbProcessor *dbProcessor) *domain.Processor {
	return &domain.Processor{
		ID:         domain.Int64(dbProcessor.ID),
		Processor:  dbProcessor.Processor.String,
		Rating:     dbProcessor.Rating.String,
		Antutu10:   dbProcessor.Antutu10.String,
		Geekbench6: dbProcessor.Geekbench6.String,
		Cores:      dbProcessor.Cores.String,
		Clock:      dbProcessor.Clock.String,
		GPU:        dbProcessor.GPU.String,
		CreatedAt:  dbProcessor.CreatedAt.String,
		UpdatedAt:  dbProcessor.UpdatedAt.String,
	}
}

// fromDomainProcessor converts a domain.Processor to a dbProcessor, ignoring its identifier.
func fromDomainProcessor(processor *domain.Processor) *dbProcessor {
	return &dbProcessor{
		Processor:  nullString(processor.Processor),
		Rating:     nullString(processor.Rating),
		Antutu10:   nullString(processor.Antutu10),
		Geekbench6: nullString(processor.Geekbench6),
		Cores:      nullString(processor.Cores),
		Clock:      nullString(processor.Clock),
		GPU:        nullString(processor.GPU),
	}
}

// GetProcessors retrieves all processors from the database ordered by id.
func (repo *Repository) GetProcessors() ([]*domain.Processor, error) {
	var dbProcessors []*dbProcessor
	query := `SELECT id, processor, rating, antutu_10, geekbench_6, cores, clock, gpu, created_at, updated_at
		      FROM processor ORDER BY id`

	err := repo.conn.Select(&dbProcessors, query)
	if err != nil {
		return nil, fmt.Errorf("getting processors: %w", err)
	}

	processors := make([]*domain.Processor, len(dbProcessors))
	for i, dbP := range dbProcessors {
		processors[i] = toDomainProcessor(dbP)
	}
	return processors, nil
}

// CreateProcessor inserts a new processor and returns the id assigned by SQLite.
func (repo *Repository) CreateProcessor(processor *domain.Processor) (int64, error) {
	row := fromDomainProcessor(processor)
	now := time.Now().UTC().Format(time.RFC3339)
	row.CreatedAt = nullString(now)
	row.UpdatedAt = nullString(now)

	query := `INSERT INTO processor (processor, rating, antutu_10, geekbench_6, cores, clock, gpu, created_at, updated_at)
	          VALUES (:processor, :rating, :antutu_10, :geekbench_6, :cores, :clock, :gpu, :created_at, :updated_at)`

	result, err := repo.conn.NamedExec(query, row)
	if err != nil {
		return 0, fmt.Errorf("creating processor %s: %w", processor.Processor, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("fetching inserted id: %w", err)
	}

	return id, nil
}

// UpdateProcessor replaces the fields of an existing processor.
func (repo *Repository) UpdateProcessor(id int64, processor *domain.Processor) error {
	row := fromDomainProcessor(processor)
	row.ID = id
	row.UpdatedAt = nullString(time.Now().UTC().Format(time.RFC3339))

	query := `UPDATE processor SET processor = :processor, rating = :rating, antutu_10 = :antutu_10,
		      geekbench_6 = :geekbench_6, cores = :cores, clock = :clock, gpu = :gpu, updated_at = :updated_at
		      WHERE id = :id`

	result, err := repo.conn.NamedExec(query, row)
	if err != nil {
		return fmt.Errorf("updating processor %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("updating processor %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeleteProcessor removes a processor from the database.
func (repo *Repository) DeleteProcessor(id int64) error {
	query := `DELETE FROM processor WHERE id = ?`

	result, err := repo.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("deleting processor %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("deleting processor %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
