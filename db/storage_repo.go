package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rankdesk/rankdesk/domain"
)

var _ domain.StorageRepository = (*Repository)(nil)

// GetItem implements the domain.StorageRepository interface.
func (repo *Repository) GetItem(key string) (string, bool, error) {
	var value string
	query := `SELECT value FROM storage WHERE key = ?`

	err := repo.conn.Get(&value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting item %s: %w", key, err)
	}

	return value, true, nil
}

// SetItem implements the domain.StorageRepository interface.
// It upserts the value so repeated logins overwrite the stored token.
func (repo *Repository) SetItem(key, value string) error {
	query := `INSERT INTO storage (key, value) VALUES (?, ?)
		      ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	_, err := repo.conn.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("setting item %s: %w", key, err)
	}

	return nil
}

// RemoveItem implements the domain.StorageRepository interface.
func (repo *Repository) RemoveItem(key string) error {
	query := `DELETE FROM storage WHERE key = ?`

	_, err := repo.conn.Exec(query, key)
	if err != nil {
		return fmt.Errorf("removing item %s: %w", key, err)
	}

	return nil
}
