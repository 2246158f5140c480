package ledger

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/vandehoeken/portal/internal/models"
)

// AccountStore is the durable mapping from citizens to treasury accounts.
// Balance mutations happen only through applyDeltaTx, inside a ledger
// service transaction.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// GetOrCreate returns the citizen's account, creating it with a fresh VNT id
// and zero balance on first access. The unique constraint on user_email plus
// ON CONFLICT DO NOTHING makes concurrent first-time lookups converge on a
// single account.
func (s *AccountStore) GetOrCreate(ctx context.Context, userEmail string) (*models.Account, error) {
	account, err := s.FindByEmail(ctx, userEmail)
	if err == nil {
		return account, nil
	}
	if err != ErrAccountNotFound {
		return nil, err
	}

	vntID := generateVNTID()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (vnt_id, user_email, balance, version, created_at, updated_at)
		VALUES ($1, $2, 0, 1, NOW(), NOW())
		ON CONFLICT (user_email) DO NOTHING
	`, vntID, userEmail)
	if err != nil {
		return nil, storageErr("account create", err)
	}

	return s.FindByEmail(ctx, userEmail)
}

// FindByEmail looks up an account by its owning citizen.
func (s *AccountStore) FindByEmail(ctx context.Context, userEmail string) (*models.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, vnt_id, user_email, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_email = $1
	`, userEmail))
}

// FindByVNTID looks up an account by its human-readable treasury id.
func (s *AccountStore) FindByVNTID(ctx context.Context, vntID string) (*models.Account, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, vnt_id, user_email, balance, version, created_at, updated_at
		FROM accounts
		WHERE vnt_id = $1
	`, vntID))
}

func (s *AccountStore) scanOne(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.VNTID, &a.UserEmail, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storageErr("account lookup", err)
	}
	return &a, nil
}

// idByEmailTx resolves an account id without taking a lock. The ledger
// service uses the ids to establish a consistent locking order.
func (s *AccountStore) idByEmailTx(tx *sql.Tx, userEmail string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM accounts WHERE user_email = $1`, userEmail).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, storageErr("account lookup", err)
	}
	return id, nil
}

func (s *AccountStore) idByVNTIDTx(tx *sql.Tx, vntID string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM accounts WHERE vnt_id = $1`, vntID).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, storageErr("account lookup", err)
	}
	return id, nil
}

func (s *AccountStore) lockByIDTx(tx *sql.Tx, id int64) (*models.Account, error) {
	return s.scanLocked(tx.QueryRow(`
		SELECT id, vnt_id, user_email, balance, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// lockByEmailTx reads an account row under FOR UPDATE within a transaction.
func (s *AccountStore) lockByEmailTx(tx *sql.Tx, userEmail string) (*models.Account, error) {
	return s.scanLocked(tx.QueryRow(`
		SELECT id, vnt_id, user_email, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_email = $1
		FOR UPDATE
	`, userEmail))
}

func (s *AccountStore) lockByVNTIDTx(tx *sql.Tx, vntID string) (*models.Account, error) {
	return s.scanLocked(tx.QueryRow(`
		SELECT id, vnt_id, user_email, balance, version, created_at, updated_at
		FROM accounts
		WHERE vnt_id = $1
		FOR UPDATE
	`, vntID))
}

func (s *AccountStore) scanLocked(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.VNTID, &a.UserEmail, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, storageErr("account lock", err)
	}
	return &a, nil
}

// applyDeltaTx adjusts a balance by delta with an optimistic version check.
// The SQL guard on balance + delta keeps the non-negative invariant even if
// the caller's view was stale.
func (s *AccountStore) applyDeltaTx(tx *sql.Tx, account *models.Account, delta int64) error {
	if account.Balance+delta < 0 {
		return ErrInsufficientFunds
	}

	result, err := tx.Exec(`
		UPDATE accounts
		SET balance = balance + $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4 AND balance + $1 >= 0
	`, delta, time.Now(), account.ID, account.Version)
	if err != nil {
		return storageErr("balance update", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("balance update", err)
	}
	if rowsAffected == 0 {
		return ErrConflict
	}

	return nil
}

// generateVNTID produces a human-readable treasury account id,
// e.g. VNT-1735689600123-X7K2M9QRT.
func generateVNTID() string {
	const charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 9)
	charsetLen := big.NewInt(int64(len(charset)))
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, charsetLen)
		suffix[i] = charset[n.Int64()]
	}
	return fmt.Sprintf("VNT-%d-%s", time.Now().UnixMilli(), suffix)
}
