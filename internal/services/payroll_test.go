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
	"github.com/stretchr/testify/assert"

	"github.com/vandehoeken/portal/internal/ledger"
	"github.com/vandehoeken/portal/internal/models"
	"github.com/vandehoeken/portal/internal/notify"
)

func newPayrollFixture(t *testing.T) (*PayrollService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	sink := notify.NewSink(nil)
	service := NewPayrollService(db, ledger.NewService(db, sink), sink)
	return service, mock, func() { db.Close() }
}

func TestPayrollService_AssignJob(t *testing.T) {
	service, mock, cleanup := newPayrollFixture(t)
	defer cleanup()

	t.Run("snapshots title and salary onto the assignment", func(t *testing.T) {
		mock.ExpectQuery("SELECT title, salary FROM jobs").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"title", "salary"}).AddRow("Mayor", 50))
		mock.ExpectQuery("INSERT INTO job_assignments").
			WithArgs("mayor@vandehoeken.gov", int64(1), "Mayor", int64(50)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_email", "job_id", "job_title", "daily_salary", "status", "start_date"}).
				AddRow(1, "mayor@vandehoeken.gov", 1, "Mayor", 50, "active", time.Now()))

		body, _ := json.Marshal(AssignRequest{UserEmail: "mayor@vandehoeken.gov", JobID: 1})
		r := httptest.NewRequest("POST", "/admin/assignments", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.AssignJob(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var a models.JobAssignment
		json.Unmarshal(w.Body.Bytes(), &a)
		assert.Equal(t, "Mayor", a.JobTitle)
		assert.Equal(t, int64(50), a.DailySalary)
		assert.Equal(t, models.AssignmentActive, a.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown job", func(t *testing.T) {
		mock.ExpectQuery("SELECT title, salary FROM jobs").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"title", "salary"}))

		body, _ := json.Marshal(AssignRequest{UserEmail: "mayor@vandehoeken.gov", JobID: 99})
		r := httptest.NewRequest("POST", "/admin/assignments", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.AssignJob(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPayrollService_Terminate(t *testing.T) {
	service, mock, cleanup := newPayrollFixture(t)
	defer cleanup()

	withAssignmentID := func(r *http.Request, id string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("assignmentID", id)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("terminates an active assignment", func(t *testing.T) {
		mock.ExpectExec("UPDATE job_assignments SET status = 'terminated'").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		r := withAssignmentID(httptest.NewRequest("POST", "/admin/assignments/1/terminate", nil), "1")
		w := httptest.NewRecorder()

		service.Terminate(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("already terminated", func(t *testing.T) {
		mock.ExpectExec("UPDATE job_assignments SET status = 'terminated'").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		r := withAssignmentID(httptest.NewRequest("POST", "/admin/assignments/1/terminate", nil), "1")
		w := httptest.NewRecorder()

		service.Terminate(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestPayrollService_RunPayroll(t *testing.T) {
	service, mock, cleanup := newPayrollFixture(t)
	defer cleanup()

	t.Run("empty payroll", func(t *testing.T) {
		mock.ExpectQuery("FROM job_assignments").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_email", "job_id", "job_title", "daily_salary"}))

		r := httptest.NewRequest("POST", "/admin/payroll/run", nil)
		w := httptest.NewRecorder()

		service.RunPayroll(w, r)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		json.Unmarshal(w.Body.Bytes(), &resp)
		assert.Equal(t, float64(0), resp["paid"])
		assert.Equal(t, float64(0), resp["total"])
	})
}
