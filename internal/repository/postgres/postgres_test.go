package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ignite/cohort-match/internal/domain"
	"github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return db, mock, func() { db.Close() }
}

var respondentCols = []string{"id", "cohort", "side", "raw_email", "normalized_email", "display_name", "requires_manual_match", "created_at"}

// =============================================================================
// RESPONDENTS
// =============================================================================

func TestPersonRepo_Insert(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO survey_respondents").
		WithArgs(sqlmock.AnyArg(), "C1", "before", "Ana@Example.com", "ana@example.com", "Ana", false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	p := domain.NewRespondent("C1", domain.SideBefore, "Ana@Example.com", "Ana")
	if err := NewPersonRepo(db).Insert(context.Background(), p); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		t.Errorf("expected uuid id, got %q", p.ID)
	}
	if !p.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", p.CreatedAt, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPersonRepo_InsertFailureClearsID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("INSERT INTO survey_respondents").WillReturnError(errors.New("connection reset"))

	p := domain.NewRespondent("C1", domain.SideAfter, "", "Bo")
	if err := NewPersonRepo(db).Insert(context.Background(), p); err == nil {
		t.Fatal("expected error")
	}
	if p.ID != "" {
		t.Errorf("ID should be cleared on failure, got %q", p.ID)
	}
}

func TestPersonRepo_FindByID_NotFound(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewPersonRepo(db)

	if _, err := repo.FindByID(context.Background(), "not-a-uuid"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("malformed id: got %v, want ErrNotFound", err)
	}

	id := uuid.New().String()
	mock.ExpectQuery("FROM survey_respondents WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(respondentCols))

	if _, err := repo.FindByID(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing row: got %v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPersonRepo_FindUnmatched(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("p.after_id = r.id").
		WithArgs("after").
		WillReturnRows(sqlmock.NewRows(respondentCols).
			AddRow("id-1", "C1", "after", "a@example.com", "a@example.com", "A", false, now).
			AddRow("id-2", domain.UnknownCohort, "after", "", "", "B", true, now))

	got, err := NewPersonRepo(db).FindUnmatched(context.Background(), domain.SideAfter)
	if err != nil {
		t.Fatalf("FindUnmatched() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d respondents, want 2", len(got))
	}
	if got[0].ID != "id-1" || got[0].Side != domain.SideAfter {
		t.Errorf("unexpected first row: %+v", got[0])
	}
	if !got[1].RequiresManualMatch {
		t.Error("second row should require a manual match")
	}

	if _, err := NewPersonRepo(db).FindUnmatched(context.Background(), "sideways"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("invalid side: got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPersonRepo_FindCohorts(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("GROUP BY cohort").
		WillReturnRows(sqlmock.NewRows([]string{"cohort"}).AddRow("C2").AddRow("C1"))

	got, err := NewPersonRepo(db).FindCohorts(context.Background())
	if err != nil {
		t.Fatalf("FindCohorts() error: %v", err)
	}
	if len(got) != 2 || got[0] != "C2" || got[1] != "C1" {
		t.Errorf("FindCohorts() = %v, want [C2 C1]", got)
	}
}

// =============================================================================
// PAIRINGS
// =============================================================================

func TestMatchRepo_InsertDuplicateIsConflict(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO survey_pairings").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	p := &domain.Pairing{Cohort: "C1", BeforeID: "b", AfterID: "a", Origin: domain.OriginManual, MatchedAt: time.Now()}
	err := NewMatchRepo(db).Insert(context.Background(), p)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("got %v, want ErrConflict", err)
	}
}

func TestMatchRepo_InsertAndExists(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewMatchRepo(db)
	ctx := context.Background()

	conf := 0.9
	matchedAt := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO survey_pairings").
		WithArgs(sqlmock.AnyArg(), "C1", "b", "a", "auto_name", 0.9, matchedAt, "system", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("b", "a").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	p := &domain.Pairing{Cohort: "C1", BeforeID: "b", AfterID: "a", Origin: domain.OriginAutoName,
		Confidence: &conf, MatchedAt: matchedAt, MatchedBy: domain.SystemMatcher}
	if err := repo.Insert(ctx, p); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if p.ID == "" {
		t.Error("Insert() should assign an id")
	}

	ok, err := repo.Exists(ctx, "b", "a")
	if err != nil || !ok {
		t.Errorf("Exists() = %v, %v; want true, nil", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMatchRepo_FindByCohortNullConfidence(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("FROM survey_pairings WHERE cohort").
		WithArgs("C1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "cohort", "before_id", "after_id", "origin", "confidence", "matched_at", "matched_by", "notes"}).
			AddRow("p1", "C1", "b1", "a1", "auto_email", 1.0, now, "system", "").
			AddRow("p2", "C1", "b2", "a2", "manual", nil, now, "ops", "phone"))

	got, err := NewMatchRepo(db).FindByCohort(context.Background(), "C1")
	if err != nil {
		t.Fatalf("FindByCohort() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d pairings, want 2", len(got))
	}
	if got[0].Confidence == nil || *got[0].Confidence != 1.0 {
		t.Errorf("first confidence = %v, want 1.0", got[0].Confidence)
	}
	if got[1].Confidence != nil {
		t.Errorf("manual pairing confidence should be nil, got %v", *got[1].Confidence)
	}
	if got[1].Origin != domain.OriginManual || got[1].Notes != "phone" {
		t.Errorf("unexpected second row: %+v", got[1])
	}
}

func TestMatchRepo_CountByOrigin(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("GROUP BY origin").
		WillReturnRows(sqlmock.NewRows([]string{"origin", "count"}).
			AddRow("auto_email", 4).AddRow("manual", 1))

	got, err := NewMatchRepo(db).CountByOrigin(context.Background())
	if err != nil {
		t.Fatalf("CountByOrigin() error: %v", err)
	}
	if got[domain.OriginAutoEmail] != 4 || got[domain.OriginManual] != 1 || got[domain.OriginAutoName] != 0 {
		t.Errorf("CountByOrigin() = %v", got)
	}
}

// =============================================================================
// RESPONSES
// =============================================================================

func TestResponseRepo_Exists(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM survey_responses").
		WithArgs("before", "C1", ts, "Ana", "ana@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := NewResponseRepo(db).Exists(context.Background(), domain.SideBefore, "C1", ts, "Ana", "ana@example.com")
	if err != nil || ok {
		t.Errorf("Exists() = %v, %v; want false, nil", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestResponseRepo_FindByRespondentID(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM survey_responses").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "respondent_id", "side", "cohort", "submitted_at", "name",
			"normalized_email", "confidence", "situations", "created_at"}).
			AddRow("x1", "r1", "after", "C1", ts, "Ana", "ana@example.com", 4.5, []byte(`{"presenting":3}`), ts))

	got, err := NewResponseRepo(db).FindByRespondentID(context.Background(), "r1")
	if err != nil {
		t.Fatalf("FindByRespondentID() error: %v", err)
	}
	if got.Confidence == nil || *got.Confidence != 4.5 {
		t.Errorf("Confidence = %v, want 4.5", got.Confidence)
	}
	if got.Situations["presenting"] != 3 {
		t.Errorf("Situations = %v", got.Situations)
	}
	if got.Side != domain.SideAfter {
		t.Errorf("Side = %q", got.Side)
	}
}

func TestResponseRepo_InsertRequiresRespondent(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewResponseRepo(db).Insert(context.Background(), &domain.Response{Side: domain.SideBefore})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no query should run: %v", err)
	}
}

func TestResponseRepo_Insert(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO survey_responses").
		WithArgs(sqlmock.AnyArg(), "r1", "before", "C1", ts, "Ana", "", nil, `{}`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(ts))

	resp := &domain.Response{RespondentID: "r1", Side: domain.SideBefore, Cohort: "C1", SubmittedAt: ts, Name: "Ana"}
	if err := NewResponseRepo(db).Insert(context.Background(), resp); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if resp.ID == "" {
		t.Error("Insert() should assign an id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTxRunner_CommitsAndRollsBack(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()
	runner := NewTxRunner(db)
	repo := NewMatchRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO survey_pairings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := runner.WithinTx(context.Background(), func(ctx context.Context) error {
		return repo.Insert(ctx, &domain.Pairing{Cohort: "C1", BeforeID: "b", AfterID: "a", Origin: domain.OriginManual})
	})
	if err != nil {
		t.Fatalf("WithinTx() error: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")
	err = runner.WithinTx(context.Background(), func(ctx context.Context) error {
		return runner.WithinTx(ctx, func(context.Context) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
