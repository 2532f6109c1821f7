package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ojtools/ojsync/internal/shared"
)

// LoginRepository caches destination tokens obtained from browser auth so
// the interactive flow runs once, not once per sync.
type LoginRepository struct {
	db *sql.DB
}

// NewLoginRepository creates a new LoginRepository with the given database connection
func NewLoginRepository(db *sql.DB) *LoginRepository {
	return &LoginRepository{db: db}
}

// Save stores (or replaces) the token for a service.
func (r *LoginRepository) Save(service, token string) error {
	query := `
		INSERT INTO logins (service, token, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET
			token = excluded.token,
			saved_at = excluded.saved_at
	`

	if _, err := r.db.Exec(query, service, token, time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: save token for %s: %v", shared.ErrStorage, service, err)
	}

	return nil
}

// Token retrieves the cached token for a service, empty when none is saved.
func (r *LoginRepository) Token(service string) (string, error) {
	var token string
	err := r.db.QueryRow(`SELECT token FROM logins WHERE service = ?`, service).Scan(&token)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: query token for %s: %v", shared.ErrStorage, service, err)
	}

	return token, nil
}
