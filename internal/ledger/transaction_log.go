package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/vandehoeken/portal/internal/models"
)

// TransactionLog is the append-only record of every money movement.
// Rows are never updated or deleted.
type TransactionLog struct {
	db *sql.DB
}

func NewTransactionLog(db *sql.DB) *TransactionLog {
	return &TransactionLog{db: db}
}

// appendTx persists one transaction record inside the caller's SQL
// transaction, assigning id, timestamp and completed status.
func (l *TransactionLog) appendTx(tx *sql.Tx, t *models.Transaction) error {
	if t.TransactionID == "" {
		t.TransactionID = uuid.New().String()
	}
	t.Status = models.StatusCompleted
	t.CreatedAt = time.Now()

	_, err := tx.Exec(`
		INSERT INTO transactions
		(transaction_id, type, amount, from_vnt_id, to_vnt_id, from_email, to_email, description, item_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, t.TransactionID, t.Type, t.Amount, t.FromVNTID, t.ToVNTID,
		t.FromEmail, t.ToEmail, t.Description, t.ItemName, t.Status, t.CreatedAt)
	if err != nil {
		return storageErr("transaction append", err)
	}
	return nil
}

// Exists reports whether a transaction has been committed. Used for
// reconciliation when a commit outcome is ambiguous.
func (l *TransactionLog) Exists(ctx context.Context, transactionID string) (bool, error) {
	var found bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE transaction_id = $1)
	`, transactionID).Scan(&found)
	if err != nil {
		return false, storageErr("transaction lookup", err)
	}
	return found, nil
}

// Find returns a single transaction by its public id.
func (l *TransactionLog) Find(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var t models.Transaction
	err := l.db.QueryRowContext(ctx, `
		SELECT id, transaction_id, type, amount, from_vnt_id, to_vnt_id, from_email, to_email,
		       description, COALESCE(item_name, ''), status, created_at
		FROM transactions
		WHERE transaction_id = $1
	`, transactionID).Scan(&t.ID, &t.TransactionID, &t.Type, &t.Amount, &t.FromVNTID, &t.ToVNTID,
		&t.FromEmail, &t.ToEmail, &t.Description, &t.ItemName, &t.Status, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, storageErr("transaction lookup", err)
	}
	return &t, nil
}

// ListForAccount returns the newest transactions touching an account as
// sender or receiver.
func (l *TransactionLog) ListForAccount(ctx context.Context, vntID string, limit int) ([]models.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, transaction_id, type, amount, from_vnt_id, to_vnt_id, from_email, to_email,
		       description, COALESCE(item_name, ''), status, created_at
		FROM transactions
		WHERE from_vnt_id = $1 OR to_vnt_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, vntID, limit)
	if err != nil {
		return nil, storageErr("transaction list", err)
	}
	defer rows.Close()
	return l.scanRows(rows)
}

// ListAll returns the newest transactions across all accounts (admin view).
func (l *TransactionLog) ListAll(ctx context.Context, limit int) ([]models.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, transaction_id, type, amount, from_vnt_id, to_vnt_id, from_email, to_email,
		       description, COALESCE(item_name, ''), status, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storageErr("transaction list", err)
	}
	defer rows.Close()
	return l.scanRows(rows)
}

func (l *TransactionLog) scanRows(rows *sql.Rows) ([]models.Transaction, error) {
	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.TransactionID, &t.Type, &t.Amount, &t.FromVNTID, &t.ToVNTID,
			&t.FromEmail, &t.ToEmail, &t.Description, &t.ItemName, &t.Status, &t.CreatedAt)
		if err != nil {
			return nil, storageErr("transaction scan", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("transaction scan", err)
	}
	return transactions, nil
}
