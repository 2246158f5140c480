package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"

	"github.com/vandehoeken/portal/internal/ledger"
	"github.com/vandehoeken/portal/internal/notify"
)

func newTreasuryFixture(t *testing.T) (*TreasuryService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	ledgerService := ledger.NewService(db, notify.NewSink(nil))
	service := NewTreasuryService(db, nil, ledgerService)
	return service, mock, func() { db.Close() }
}

func asCitizen(r *http.Request, email string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), "userEmail", email))
}

func TestTreasuryService_GetMyAccount(t *testing.T) {
	service, mock, cleanup := newTreasuryFixture(t)
	defer cleanup()

	t.Run("returns existing account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts").
			WithArgs("citizen@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}).
				AddRow(1, "VNT-A", "citizen@vandehoeken.gov", 100, 1, time.Now(), time.Now()))

		r := asCitizen(httptest.NewRequest("GET", "/treasury/account", nil), "citizen@vandehoeken.gov")
		w := httptest.NewRecorder()

		service.GetMyAccount(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var account AccountResponse
		json.Unmarshal(w.Body.Bytes(), &account)
		assert.Equal(t, "VNT-A", account.VNTID)
		assert.Equal(t, int64(100), account.Balance)
	})

	t.Run("opens account on first access", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts").
			WithArgs("new@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}))
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs(sqlmock.AnyArg(), "new@vandehoeken.gov").
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectQuery("SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts").
			WithArgs("new@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}).
				AddRow(2, "VNT-NEW", "new@vandehoeken.gov", 0, 1, time.Now(), time.Now()))

		r := asCitizen(httptest.NewRequest("GET", "/treasury/account", nil), "new@vandehoeken.gov")
		w := httptest.NewRecorder()

		service.GetMyAccount(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var account AccountResponse
		json.Unmarshal(w.Body.Bytes(), &account)
		assert.Equal(t, int64(0), account.Balance)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/treasury/account", nil)
		w := httptest.NewRecorder()

		service.GetMyAccount(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTreasuryService_Transfer(t *testing.T) {
	service, mock, cleanup := newTreasuryFixture(t)
	defer cleanup()

	t.Run("validation failure", func(t *testing.T) {
		body, _ := json.Marshal(TransferRequest{Amount: -5})
		r := asCitizen(httptest.NewRequest("POST", "/treasury/transfer", bytes.NewBuffer(body)), "citizen@vandehoeken.gov")
		w := httptest.NewRecorder()

		service.Transfer(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("recipient not found maps to 404", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM accounts WHERE user_email`).
			WithArgs("citizen@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectQuery(`SELECT id FROM accounts WHERE vnt_id`).
			WithArgs("VNT-MISSING").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		body, _ := json.Marshal(TransferRequest{ToVNTID: "VNT-MISSING", Amount: 10})
		r := asCitizen(httptest.NewRequest("POST", "/treasury/transfer", bytes.NewBuffer(body)), "citizen@vandehoeken.gov")
		w := httptest.NewRecorder()

		service.Transfer(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTreasuryService_RateLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()
	_ = mock

	redisClient, redisMock := redismock.NewClientMock()
	ledgerService := ledger.NewService(db, notify.NewSink(nil))
	service := NewTreasuryService(db, redisClient, ledgerService)

	r := asCitizen(httptest.NewRequest("POST", "/treasury/transfer", nil), "citizen@vandehoeken.gov")

	t.Run("first attempt sets the window", func(t *testing.T) {
		redisMock.ExpectIncr("rate:transfer:citizen@vandehoeken.gov").SetVal(1)
		redisMock.ExpectExpire("rate:transfer:citizen@vandehoeken.gov",
			ledgerService.Config().RateLimitWindow).SetVal(true)

		assert.True(t, service.allowTransfer(r, "citizen@vandehoeken.gov"))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("over the limit is refused", func(t *testing.T) {
		over := int64(ledgerService.Config().TransferRateLimit) + 1
		redisMock.ExpectIncr("rate:transfer:citizen@vandehoeken.gov").SetVal(over)

		assert.False(t, service.allowTransfer(r, "citizen@vandehoeken.gov"))
	})

	t.Run("fails open when redis errors", func(t *testing.T) {
		redisMock.ExpectIncr("rate:transfer:citizen@vandehoeken.gov").SetErr(assert.AnError)

		assert.True(t, service.allowTransfer(r, "citizen@vandehoeken.gov"))
	})
}

func TestTreasuryService_AccountEnquiry(t *testing.T) {
	service, mock, cleanup := newTreasuryFixture(t)
	defer cleanup()

	t.Run("resolves holder name", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts").
			WithArgs("VNT-A").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}).
				AddRow(1, "VNT-A", "citizen@vandehoeken.gov", 100, 1, time.Now(), time.Now()))
		mock.ExpectQuery("SELECT full_name FROM users").
			WithArgs("citizen@vandehoeken.gov").
			WillReturnRows(sqlmock.NewRows([]string{"full_name"}).AddRow("Jan Vandehoek"))

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("vntID", "VNT-A")
		r := httptest.NewRequest("GET", "/treasury/accounts/VNT-A", nil)
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		w := httptest.NewRecorder()

		service.AccountEnquiry(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Jan Vandehoek")
	})

	t.Run("unknown account", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, vnt_id, user_email, balance, version, created_at, updated_at FROM accounts").
			WithArgs("VNT-MISSING").
			WillReturnRows(sqlmock.NewRows([]string{"id", "vnt_id", "user_email", "balance", "version", "created_at", "updated_at"}))

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("vntID", "VNT-MISSING")
		r := httptest.NewRequest("GET", "/treasury/accounts/VNT-MISSING", nil)
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
		w := httptest.NewRecorder()

		service.AccountEnquiry(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
