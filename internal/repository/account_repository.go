package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/renft/marketplace/internal/utils"
)

// AccountRecord mirrors the 'accounts' table. An account is identified by
// its rail/registry address; the password only guards the HTTP session.
type AccountRecord struct {
	ID           uint64
	Address      string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

// Create inserts an account and returns its ID. The address is normalized
// to lower case so lookups are case-insensitive.
func (r *AccountRepo) Create(ctx context.Context, address, password string, cost int) (uint64, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (address, password_hash) VALUES (?,?)",
		address, hash)
	if err != nil {
		// MySQL duplicate key
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrAccountExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByAddress fetches an account by normalized address. sql.ErrNoRows is
// returned when the address is unknown.
func (r *AccountRepo) GetByAddress(ctx context.Context, address string) (AccountRecord, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	var a AccountRecord
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,address,password_hash,created_at,updated_at FROM accounts WHERE address=? LIMIT 1",
		address).Scan(&a.ID, &a.Address, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
