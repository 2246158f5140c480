package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/vandehoeken/portal/internal/config"
	"github.com/vandehoeken/portal/internal/models"
	"github.com/vandehoeken/portal/internal/notify"
	"github.com/vandehoeken/portal/internal/observability"
)

// Service is the only component permitted to mutate balances. Every balance
// change commits atomically with exactly one transaction log entry: debit,
// credit and log row share a single SQL transaction, with account rows
// locked FOR UPDATE in consistent id order. Notification dispatch happens
// after commit and never rolls a committed movement back.
type Service struct {
	db       *sql.DB
	accounts *AccountStore
	txlog    *TransactionLog
	sink     notify.Sink
	audit    *AuditLogger
	cfg      *config.LedgerConfig
}

func NewService(db *sql.DB, sink notify.Sink) *Service {
	return &Service{
		db:       db,
		accounts: NewAccountStore(db),
		txlog:    NewTransactionLog(db),
		sink:     sink,
		audit:    NewAuditLogger(),
		cfg:      config.LoadLedgerConfig(),
	}
}

// Accounts exposes the account store for read paths and lazy creation.
func (s *Service) Accounts() *AccountStore { return s.accounts }

// Log exposes the transaction log for read paths.
func (s *Service) Log() *TransactionLog { return s.txlog }

// Config exposes ledger tunables to the HTTP layer.
func (s *Service) Config() *config.LedgerConfig { return s.cfg }

// Transfer moves amount VHS from the sender's account to the account behind
// toVNTID and logs one transfer_sent transaction.
func (s *Service) Transfer(ctx context.Context, fromEmail, toVNTID string, amount int64, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Money transfer"
	}

	var res *movementResult
	err := s.withRetry(ctx, "transfer", func(ctx context.Context) error {
		var err error
		res, err = s.transferOnce(ctx, fromEmail, toVNTID, amount, description)
		return err
	})
	if err != nil {
		observability.RecordOperation("transfer", "failed")
		s.audit.LogError("", toVNTID, err)
		return nil, err
	}

	observability.RecordOperation("transfer", "completed")
	observability.RecordAmount(models.TxTransferSent, amount)
	s.audit.LogMovement(res.txn.TransactionID, models.TxTransferSent, *res.txn.FromVNTID, *res.txn.ToVNTID, amount)

	s.send(ctx, res.txn.FromEmail, "Transfer Sent - Vandehoeken Treasury",
		fmt.Sprintf("Your transfer has been completed!\n\nAmount: %d VHS\nTo: %s\nDescription: %s\n\nNew Balance: %d VHS",
			amount, toVNTID, description, res.fromBalance))
	s.send(ctx, res.txn.ToEmail, "Transfer Received - Vandehoeken Treasury",
		fmt.Sprintf("You have received a transfer!\n\nAmount: %d VHS\nFrom: %s\nDescription: %s\n\nNew Balance: %d VHS",
			amount, *res.txn.FromVNTID, description, res.toBalance))

	return res.txn, nil
}

type movementResult struct {
	txn         *models.Transaction
	fromBalance int64
	toBalance   int64
}

func (s *Service) transferOnce(ctx context.Context, fromEmail, toVNTID string, amount int64, description string) (*movementResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("transfer begin", err)
	}
	defer tx.Rollback()

	fromID, err := s.accounts.idByEmailTx(tx, fromEmail)
	if err != nil {
		return nil, err
	}
	toID, err := s.accounts.idByVNTIDTx(tx, toVNTID)
	if err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, ErrSelfTransfer
	}

	// Lock accounts in consistent order to prevent deadlocks
	firstLock, secondLock := fromID, toID
	if fromID > toID {
		firstLock, secondLock = toID, fromID
	}
	first, err := s.accounts.lockByIDTx(tx, firstLock)
	if err != nil {
		return nil, err
	}
	second, err := s.accounts.lockByIDTx(tx, secondLock)
	if err != nil {
		return nil, err
	}
	from, to := first, second
	if firstLock != fromID {
		from, to = second, first
	}

	if from.Balance < amount {
		return nil, ErrInsufficientFunds
	}
	if err := s.accounts.applyDeltaTx(tx, from, -amount); err != nil {
		return nil, err
	}
	if err := s.accounts.applyDeltaTx(tx, to, amount); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Type:        models.TxTransferSent,
		Amount:      amount,
		FromVNTID:   &from.VNTID,
		ToVNTID:     &to.VNTID,
		FromEmail:   from.UserEmail,
		ToEmail:     to.UserEmail,
		Description: description,
	}
	if err := s.txlog.appendTx(tx, txn); err != nil {
		return nil, err
	}

	if err := s.commit(tx, txn.TransactionID, "transfer"); err != nil {
		return nil, err
	}
	return &movementResult{txn: txn, fromBalance: from.Balance - amount, toBalance: to.Balance + amount}, nil
}

// Purchase debits the buyer by the item price and decrements the item's
// stock, atomically with the stock re-check. Logs one purchase transaction.
func (s *Service) Purchase(ctx context.Context, buyerEmail string, itemID int64) (*models.Transaction, error) {
	var res *movementResult
	err := s.withRetry(ctx, "purchase", func(ctx context.Context) error {
		var err error
		res, err = s.purchaseOnce(ctx, buyerEmail, itemID)
		return err
	})
	if err != nil {
		observability.RecordOperation("purchase", "failed")
		s.audit.LogError("", buyerEmail, err)
		return nil, err
	}

	observability.RecordOperation("purchase", "completed")
	observability.RecordAmount(models.TxPurchase, res.txn.Amount)
	s.audit.LogMovement(res.txn.TransactionID, models.TxPurchase, *res.txn.FromVNTID, "", res.txn.Amount)

	s.send(ctx, res.txn.FromEmail, "Purchase Confirmation - Vandehoeken Marketplace",
		fmt.Sprintf("Your purchase has been completed!\n\nItem: %s\nPrice: %d VHS\nNew Balance: %d VHS\n\nThank you for your purchase!",
			res.txn.ItemName, res.txn.Amount, res.fromBalance))

	return res.txn, nil
}

func (s *Service) purchaseOnce(ctx context.Context, buyerEmail string, itemID int64) (*movementResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("purchase begin", err)
	}
	defer tx.Rollback()

	buyer, err := s.accounts.lockByEmailTx(tx, buyerEmail)
	if err != nil {
		return nil, err
	}

	var name string
	var price int64
	var stock int
	err = tx.QueryRow(`
		SELECT name, price, stock FROM marketplace_items
		WHERE id = $1
		FOR UPDATE
	`, itemID).Scan(&name, &price, &stock)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, storageErr("item lookup", err)
	}

	if price <= 0 {
		return nil, ErrInvalidAmount
	}
	if stock < 1 {
		return nil, ErrOutOfStock
	}
	if buyer.Balance < price {
		return nil, ErrInsufficientFunds
	}

	// Stock is re-checked atomically with the decrement; a concurrent buyer
	// draining the last unit makes this affect zero rows.
	result, err := tx.Exec(`
		UPDATE marketplace_items SET stock = stock - 1 WHERE id = $1 AND stock >= 1
	`, itemID)
	if err != nil {
		return nil, storageErr("stock decrement", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, storageErr("stock decrement", err)
	}
	if rowsAffected == 0 {
		return nil, ErrOutOfStock
	}

	if err := s.accounts.applyDeltaTx(tx, buyer, -price); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Type:        models.TxPurchase,
		Amount:      price,
		FromVNTID:   &buyer.VNTID,
		FromEmail:   buyer.UserEmail,
		Description: fmt.Sprintf("Purchased: %s", name),
		ItemName:    name,
	}
	if err := s.txlog.appendTx(tx, txn); err != nil {
		return nil, err
	}

	if err := s.commit(tx, txn.TransactionID, "purchase"); err != nil {
		return nil, err
	}
	return &movementResult{txn: txn, fromBalance: buyer.Balance - price}, nil
}

// PayrollResult is the outcome of one employee's salary payment within a
// payroll run.
type PayrollResult struct {
	UserEmail string `json:"user_email"`
	JobTitle  string `json:"job_title"`
	Amount    int64  `json:"amount"`
	Credited  bool   `json:"credited"`
	Error     string `json:"error,omitempty"`
}

// RunPayroll credits every active job assignment with its daily salary and
// logs one admin_adjustment transaction per credit. Failures are contained
// per employee; the run always processes the full list.
func (s *Service) RunPayroll(ctx context.Context) ([]PayrollResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_email, job_id, job_title, daily_salary
		FROM job_assignments
		WHERE status = 'active'
		ORDER BY id
	`)
	if err != nil {
		return nil, storageErr("assignment list", err)
	}
	defer rows.Close()

	var assignments []models.JobAssignment
	for rows.Next() {
		var a models.JobAssignment
		if err := rows.Scan(&a.ID, &a.UserEmail, &a.JobID, &a.JobTitle, &a.DailySalary); err != nil {
			return nil, storageErr("assignment scan", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("assignment scan", err)
	}

	results := make([]PayrollResult, 0, len(assignments))
	for _, a := range assignments {
		res := PayrollResult{UserEmail: a.UserEmail, JobTitle: a.JobTitle, Amount: a.DailySalary}

		var newBalance int64
		err := s.withRetry(ctx, "payroll", func(ctx context.Context) error {
			var err error
			newBalance, err = s.paySalaryOnce(ctx, a)
			return err
		})
		if err != nil {
			log.Printf("[LEDGER] Payroll credit failed for %s: %v", a.UserEmail, err)
			s.audit.LogError("", a.UserEmail, err)
			observability.RecordOperation("payroll_credit", "failed")
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		res.Credited = true
		results = append(results, res)
		observability.RecordOperation("payroll_credit", "completed")
		observability.RecordAmount(models.TxAdminAdjustment, a.DailySalary)

		s.send(ctx, a.UserEmail, "Daily Salary Paid - Vandehoeken Treasury",
			fmt.Sprintf("Your daily salary of %d VHS has been deposited.\n\nJob: %s\nNew Balance: %d VHS",
				a.DailySalary, a.JobTitle, newBalance))
	}

	return results, nil
}

func (s *Service) paySalaryOnce(ctx context.Context, a models.JobAssignment) (int64, error) {
	if a.DailySalary <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("payroll begin", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.lockByEmailTx(tx, a.UserEmail)
	if err != nil {
		return 0, err
	}
	if err := s.accounts.applyDeltaTx(tx, account, a.DailySalary); err != nil {
		return 0, err
	}

	txn := &models.Transaction{
		Type:        models.TxAdminAdjustment,
		Amount:      a.DailySalary,
		ToVNTID:     &account.VNTID,
		FromEmail:   s.cfg.TreasuryEmail,
		ToEmail:     a.UserEmail,
		Description: fmt.Sprintf("Daily salary: %s", a.JobTitle),
	}
	if err := s.txlog.appendTx(tx, txn); err != nil {
		return 0, err
	}

	if err := s.commit(tx, txn.TransactionID, "payroll"); err != nil {
		return 0, err
	}
	s.audit.LogMovement(txn.TransactionID, models.TxAdminAdjustment, "", account.VNTID, a.DailySalary)
	return account.Balance + a.DailySalary, nil
}

// AdminAdjust credits an account from the treasury. This is the only path
// that injects new funds into the ledger.
func (s *Service) AdminAdjust(ctx context.Context, toVNTID string, amount int64, description string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Treasury adjustment"
	}

	var res *movementResult
	err := s.withRetry(ctx, "admin_adjust", func(ctx context.Context) error {
		var err error
		res, err = s.adjustOnce(ctx, toVNTID, amount, description)
		return err
	})
	if err != nil {
		observability.RecordOperation("admin_adjust", "failed")
		s.audit.LogError("", toVNTID, err)
		return nil, err
	}

	observability.RecordOperation("admin_adjust", "completed")
	observability.RecordAmount(models.TxAdminAdjustment, amount)
	s.audit.LogMovement(res.txn.TransactionID, models.TxAdminAdjustment, "", toVNTID, amount)

	s.send(ctx, res.txn.ToEmail, "Treasury Credit - Vandehoeken Treasury",
		fmt.Sprintf("Your account has been credited by the treasury.\n\nAmount: %d VHS\nDescription: %s\n\nNew Balance: %d VHS",
			amount, description, res.toBalance))

	return res.txn, nil
}

func (s *Service) adjustOnce(ctx context.Context, toVNTID string, amount int64, description string) (*movementResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("adjust begin", err)
	}
	defer tx.Rollback()

	account, err := s.accounts.lockByVNTIDTx(tx, toVNTID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.applyDeltaTx(tx, account, amount); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		Type:        models.TxAdminAdjustment,
		Amount:      amount,
		ToVNTID:     &account.VNTID,
		FromEmail:   s.cfg.TreasuryEmail,
		ToEmail:     account.UserEmail,
		Description: description,
	}
	if err := s.txlog.appendTx(tx, txn); err != nil {
		return nil, err
	}

	if err := s.commit(tx, txn.TransactionID, "adjust"); err != nil {
		return nil, err
	}
	return &movementResult{txn: txn, toBalance: account.Balance + amount}, nil
}

// commit finishes a movement transaction. An ambiguous commit error triggers
// a reconciliation read of the transaction log: if the log entry is visible
// the commit took effect and the operation is reported as success.
func (s *Service) commit(tx *sql.Tx, transactionID, op string) error {
	err := tx.Commit()
	if err == nil {
		return nil
	}

	recCtx, cancel := context.WithTimeout(context.Background(), s.cfg.StorageTimeout)
	defer cancel()
	committed, recErr := s.txlog.Exists(recCtx, transactionID)
	if recErr == nil && committed {
		log.Printf("[LEDGER] %s commit reported %v but transaction %s is persisted; treating as committed", op, err, transactionID)
		return nil
	}
	return storageErr(op+" commit", err)
}

// withRetry runs fn under a bounded storage timeout, retrying conflicts and
// transient storage faults with linear backoff. Validation and resource
// errors surface immediately.
func (s *Service) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return storageErr(op, ctx.Err())
			case <-time.After(s.cfg.RetryBackoff * time.Duration(attempt)):
			}
			log.Printf("[LEDGER] Retrying %s (attempt %d): %v", op, attempt+1, err)
		}

		opCtx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
		err = fn(opCtx)
		cancel()

		if err == nil || !retryable(err) {
			return err
		}
	}
	return err
}

// send queues a settlement notification, best-effort. Failures are logged
// and counted but never affect the committed ledger change.
func (s *Service) send(ctx context.Context, to, subject, body string) {
	err := s.sink.Send(ctx, to, subject, body)
	observability.RecordNotification(err)
	if err != nil {
		log.Printf("[LEDGER] Failed to queue notification for %s: %v", to, err)
	}
}
