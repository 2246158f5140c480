package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/vandehoeken/portal/internal/models"
	"github.com/vandehoeken/portal/internal/notify"
)

// captureSink records queued notifications for assertions.
type captureSink struct {
	messages []notify.Message
	fail     bool
}

func (c *captureSink) Send(_ context.Context, to, subject, body string) error {
	if c.fail {
		return errors.New("outbox unavailable")
	}
	c.messages = append(c.messages, notify.Message{To: to, Subject: subject, Body: body})
	return nil
}

const (
	lockByID    = `SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts WHERE id = \$1 FOR UPDATE`
	lockByEmail = `SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts WHERE user_email = \$1 FOR UPDATE`
	lockByVNT   = `SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts WHERE vnt_id = \$1 FOR UPDATE`
)

func accountRow(id int64, vntID, email string, balance int64, version int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}).
		AddRow(id, vntID, email, balance, version, time.Now(), time.Now())
}

func TestService_Transfer(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	sink := &captureSink{}
	service := NewService(db, sink)

	t.Run("successful transfer", func(t *testing.T) {
		sink.messages = nil

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-B").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery(lockByID).WithArgs(int64(1)).
			WillReturnRows(accountRow(1, "VNT-A", "alice@vandehoeken.gov", 100, 1))
		mock.ExpectQuery(lockByID).WithArgs(int64(2)).
			WillReturnRows(accountRow(2, "VNT-B", "bob@vandehoeken.gov", 0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(-40), sqlmock.AnyArg(), int64(1), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(40), sqlmock.AnyArg(), int64(2), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WithArgs(sqlmock.AnyArg(), models.TxTransferSent, int64(40), "VNT-A", "VNT-B",
				"alice@vandehoeken.gov", "bob@vandehoeken.gov", "Money transfer", "",
				models.StatusCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		txn, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-B", 40, "")
		assert.NoError(t, err)
		assert.Equal(t, models.TxTransferSent, txn.Type)
		assert.Equal(t, int64(40), txn.Amount)
		assert.Equal(t, models.StatusCompleted, txn.Status)
		assert.Equal(t, "VNT-A", *txn.FromVNTID)
		assert.Equal(t, "VNT-B", *txn.ToVNTID)
		assert.NotEmpty(t, txn.TransactionID)
		assert.NoError(t, mock.ExpectationsWereMet())

		assert.Len(t, sink.messages, 2)
		assert.Equal(t, "Transfer Sent - Vandehoeken Treasury", sink.messages[0].Subject)
		assert.Equal(t, "alice@vandehoeken.gov", sink.messages[0].To)
		assert.Contains(t, sink.messages[0].Body, "New Balance: 60 VHS")
		assert.Equal(t, "Transfer Received - Vandehoeken Treasury", sink.messages[1].Subject)
		assert.Equal(t, "bob@vandehoeken.gov", sink.messages[1].To)
		assert.Contains(t, sink.messages[1].Body, "New Balance: 40 VHS")
	})

	t.Run("locks accounts in id order", func(t *testing.T) {
		// Sender has the higher id, so the recipient row is locked first.
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-B").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery(lockByID).WithArgs(int64(2)).
			WillReturnRows(accountRow(2, "VNT-B", "bob@vandehoeken.gov", 5, 1))
		mock.ExpectQuery(lockByID).WithArgs(int64(5)).
			WillReturnRows(accountRow(5, "VNT-A", "alice@vandehoeken.gov", 50, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(-10), sqlmock.AnyArg(), int64(5), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(10), sqlmock.AnyArg(), int64(2), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		_, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-B", 10, "Rent")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid amount rejected without touching storage", func(t *testing.T) {
		_, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-B", 0, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-B", -5, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self transfer rejected", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-A").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectRollback()

		_, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-A", 10, "")
		assert.ErrorIs(t, err, ErrSelfTransfer)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		sink.messages = nil

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-B").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery(lockByID).WithArgs(int64(1)).
			WillReturnRows(accountRow(1, "VNT-A", "alice@vandehoeken.gov", 30, 1))
		mock.ExpectQuery(lockByID).WithArgs(int64(2)).
			WillReturnRows(accountRow(2, "VNT-B", "bob@vandehoeken.gov", 0, 1))
		mock.ExpectRollback()

		_, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-B", 40, "")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Empty(t, sink.messages)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recipient not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-MISSING").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-MISSING", 10, "")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version conflict retried then succeeds", func(t *testing.T) {
		// First attempt loses the optimistic version check.
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-B").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery(lockByID).WithArgs(int64(1)).
			WillReturnRows(accountRow(1, "VNT-A", "alice@vandehoeken.gov", 100, 1))
		mock.ExpectQuery(lockByID).WithArgs(int64(2)).
			WillReturnRows(accountRow(2, "VNT-B", "bob@vandehoeken.gov", 0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(-40), sqlmock.AnyArg(), int64(1), 1).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		// Retry sees the bumped version and commits.
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-B").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery(lockByID).WithArgs(int64(1)).
			WillReturnRows(accountRow(1, "VNT-A", "alice@vandehoeken.gov", 100, 2))
		mock.ExpectQuery(lockByID).WithArgs(int64(2)).
			WillReturnRows(accountRow(2, "VNT-B", "bob@vandehoeken.gov", 0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(-40), sqlmock.AnyArg(), int64(1), 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(40), sqlmock.AnyArg(), int64(2), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		txn, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-B", 40, "")
		assert.NoError(t, err)
		assert.Equal(t, int64(40), txn.Amount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ambiguous commit reconciled against the log", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email = \$1`).
			WithArgs("alice@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id = \$1`).
			WithArgs("VNT-B").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
		mock.ExpectQuery(lockByID).WithArgs(int64(1)).
			WillReturnRows(accountRow(1, "VNT-A", "alice@vandehoeken.gov", 100, 1))
		mock.ExpectQuery(lockByID).WithArgs(int64(2)).
			WillReturnRows(accountRow(2, "VNT-B", "bob@vandehoeken.gov", 0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit().WillReturnError(errors.New("connection reset during commit"))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM transactions WHERE transaction_id = \$1\)`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		txn, err := service.Transfer(context.Background(), "alice@vandehoeken.gov", "VNT-B", 40, "")
		assert.NoError(t, err)
		assert.NotNil(t, txn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_Purchase(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	sink := &captureSink{}
	service := NewService(db, sink)

	itemQuery := `SELECT name, price, stock FROM marketplace_items WHERE id = \$1 FOR UPDATE`
	stockDecrement := `UPDATE marketplace_items SET stock = stock - 1 WHERE id = \$1 AND stock >= 1`

	t.Run("successful purchase drains balance and stock", func(t *testing.T) {
		sink.messages = nil

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("carol@vandehoeken.gov").
			WillReturnRows(accountRow(3, "VNT-C", "carol@vandehoeken.gov", 25, 1))
		mock.ExpectQuery(itemQuery).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).
				AddRow("Honey Jar", 25, 1))
		mock.ExpectExec(stockDecrement).WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(-25), sqlmock.AnyArg(), int64(3), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WithArgs(sqlmock.AnyArg(), models.TxPurchase, int64(25), "VNT-C", nil,
				"carol@vandehoeken.gov", "", "Purchased: Honey Jar", "Honey Jar",
				models.StatusCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		txn, err := service.Purchase(context.Background(), "carol@vandehoeken.gov", 7)
		assert.NoError(t, err)
		assert.Equal(t, models.TxPurchase, txn.Type)
		assert.Equal(t, int64(25), txn.Amount)
		assert.Equal(t, "Honey Jar", txn.ItemName)
		assert.NoError(t, mock.ExpectationsWereMet())

		assert.Len(t, sink.messages, 1)
		assert.Equal(t, "Purchase Confirmation - Vandehoeken Marketplace", sink.messages[0].Subject)
		assert.Contains(t, sink.messages[0].Body, "New Balance: 0 VHS")
	})

	t.Run("out of stock", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("carol@vandehoeken.gov").
			WillReturnRows(accountRow(3, "VNT-C", "carol@vandehoeken.gov", 100, 2))
		mock.ExpectQuery(itemQuery).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).
				AddRow("Honey Jar", 25, 0))
		mock.ExpectRollback()

		_, err := service.Purchase(context.Background(), "carol@vandehoeken.gov", 7)
		assert.ErrorIs(t, err, ErrOutOfStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("concurrent buyer takes the last unit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("carol@vandehoeken.gov").
			WillReturnRows(accountRow(3, "VNT-C", "carol@vandehoeken.gov", 100, 2))
		mock.ExpectQuery(itemQuery).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).
				AddRow("Honey Jar", 25, 1))
		mock.ExpectExec(stockDecrement).WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.Purchase(context.Background(), "carol@vandehoeken.gov", 7)
		assert.ErrorIs(t, err, ErrOutOfStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance leaves stock untouched", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("carol@vandehoeken.gov").
			WillReturnRows(accountRow(3, "VNT-C", "carol@vandehoeken.gov", 10, 2))
		mock.ExpectQuery(itemQuery).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).
				AddRow("Honey Jar", 25, 5))
		mock.ExpectRollback()

		_, err := service.Purchase(context.Background(), "carol@vandehoeken.gov", 7)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("item not found", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("carol@vandehoeken.gov").
			WillReturnRows(accountRow(3, "VNT-C", "carol@vandehoeken.gov", 100, 2))
		mock.ExpectQuery(itemQuery).WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}))
		mock.ExpectRollback()

		_, err := service.Purchase(context.Background(), "carol@vandehoeken.gov", 99)
		assert.ErrorIs(t, err, ErrItemNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_RunPayroll(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	sink := &captureSink{}
	service := NewService(db, sink)

	assignmentsQuery := `SELECT id, user_email, job_id, job_title, daily_salary FROM job_assignments WHERE status = 'active' ORDER BY id`

	t.Run("credits every active assignment", func(t *testing.T) {
		sink.messages = nil

		mock.ExpectQuery(assignmentsQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_email", "job_id", "job_title", "daily_salary"}).
				AddRow(1, "mayor@vandehoeken.gov", 1, "Mayor", 50).
				AddRow(2, "clerk@vandehoeken.gov", 2, "Clerk", 75))

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("mayor@vandehoeken.gov").
			WillReturnRows(accountRow(10, "VNT-M", "mayor@vandehoeken.gov", 0, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(50), sqlmock.AnyArg(), int64(10), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WithArgs(sqlmock.AnyArg(), models.TxAdminAdjustment, int64(50), nil, "VNT-M",
				"treasury@vandehoeken.gov", "mayor@vandehoeken.gov", "Daily salary: Mayor", "",
				models.StatusCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("clerk@vandehoeken.gov").
			WillReturnRows(accountRow(11, "VNT-K", "clerk@vandehoeken.gov", 10, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(75), sqlmock.AnyArg(), int64(11), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		results, err := service.RunPayroll(context.Background())
		assert.NoError(t, err)
		assert.Len(t, results, 2)
		assert.True(t, results[0].Credited)
		assert.Equal(t, int64(50), results[0].Amount)
		assert.True(t, results[1].Credited)
		assert.Equal(t, int64(75), results[1].Amount)
		assert.NoError(t, mock.ExpectationsWereMet())

		assert.Len(t, sink.messages, 2)
		assert.Equal(t, "Daily Salary Paid - Vandehoeken Treasury", sink.messages[0].Subject)
		assert.Contains(t, sink.messages[0].Body, "New Balance: 50 VHS")
		assert.Contains(t, sink.messages[1].Body, "New Balance: 85 VHS")
	})

	t.Run("one failing employee does not stop the run", func(t *testing.T) {
		sink.messages = nil

		mock.ExpectQuery(assignmentsQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_email", "job_id", "job_title", "daily_salary"}).
				AddRow(1, "ghost@vandehoeken.gov", 1, "Mayor", 50).
				AddRow(2, "clerk@vandehoeken.gov", 2, "Clerk", 75))

		// No account for the first employee.
		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("ghost@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}))
		mock.ExpectRollback()

		mock.ExpectBegin()
		mock.ExpectQuery(lockByEmail).WithArgs("clerk@vandehoeken.gov").
			WillReturnRows(accountRow(11, "VNT-K", "clerk@vandehoeken.gov", 10, 1))
		mock.ExpectExec(`UPDATE accounts`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		results, err := service.RunPayroll(context.Background())
		assert.NoError(t, err)
		assert.Len(t, results, 2)
		assert.False(t, results[0].Credited)
		assert.Contains(t, results[0].Error, "account not found")
		assert.True(t, results[1].Credited)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty payroll is a no-op", func(t *testing.T) {
		mock.ExpectQuery(assignmentsQuery).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_email", "job_id", "job_title", "daily_salary"}))

		results, err := service.RunPayroll(context.Background())
		assert.NoError(t, err)
		assert.Empty(t, results)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_AdminAdjust(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	sink := &captureSink{}
	service := NewService(db, sink)

	t.Run("credits the account from the treasury", func(t *testing.T) {
		sink.messages = nil

		mock.ExpectBegin()
		mock.ExpectQuery(lockByVNT).WithArgs("VNT-A").
			WillReturnRows(accountRow(1, "VNT-A", "alice@vandehoeken.gov", 100, 4))
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(500), sqlmock.AnyArg(), int64(1), 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO transactions`).
			WithArgs(sqlmock.AnyArg(), models.TxAdminAdjustment, int64(500), nil, "VNT-A",
				"treasury@vandehoeken.gov", "alice@vandehoeken.gov", "Founding grant", "",
				models.StatusCompleted, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		txn, err := service.AdminAdjust(context.Background(), "VNT-A", 500, "Founding grant")
		assert.NoError(t, err)
		assert.Equal(t, models.TxAdminAdjustment, txn.Type)
		assert.Equal(t, "treasury@vandehoeken.gov", txn.FromEmail)
		assert.NoError(t, mock.ExpectationsWereMet())

		assert.Len(t, sink.messages, 1)
		assert.Contains(t, sink.messages[0].Body, "New Balance: 600 VHS")
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockByVNT).WithArgs("VNT-MISSING").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}))
		mock.ExpectRollback()

		_, err := service.AdminAdjust(context.Background(), "VNT-MISSING", 500, "")
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := service.AdminAdjust(context.Background(), "VNT-A", 0, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestService_NotificationFailureDoesNotFailOperation(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	sink := &captureSink{fail: true}
	service := NewService(db, sink)

	mock.ExpectBegin()
	mock.ExpectQuery(lockByVNT).WithArgs("VNT-A").
		WillReturnRows(accountRow(1, "VNT-A", "alice@vandehoeken.gov", 0, 1))
	mock.ExpectExec(`UPDATE accounts`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	txn, err := service.AdminAdjust(context.Background(), "VNT-A", 100, "Grant")
	assert.NoError(t, err)
	assert.NotNil(t, txn)
	assert.NoError(t, mock.ExpectationsWereMet())
}
