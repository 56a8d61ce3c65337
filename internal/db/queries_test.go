package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hpungsan/p3seq/internal/draw"
	"github.com/hpungsan/p3seq/internal/errors"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func rec(issue string, h, te, u int) draw.Record {
	return draw.Record{Issue: issue, Hundred: h, Ten: te, Unit: u}
}

func TestAppendDrawsAndLoadYear(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	records := []draw.Record{
		rec("2024001", 0, 8, 7),
		rec("2024002", 5, 5, 1),
		rec("2024003", 9, 0, 3),
	}
	added, err := AppendDraws(ctx, db, 2024, records, 100)
	if err != nil {
		t.Fatalf("AppendDraws failed: %v", err)
	}
	if added != 3 {
		t.Errorf("added = %d, want 3", added)
	}

	s, err := LoadYear(ctx, db, 2024)
	if err != nil {
		t.Fatalf("LoadYear failed: %v", err)
	}
	if s.Year != 2024 || s.Len() != 3 {
		t.Fatalf("LoadYear = year %d len %d, want 2024/3", s.Year, s.Len())
	}
	for i := range records {
		if s.Records[i] != records[i] {
			t.Errorf("Records[%d] = %+v, want %+v", i, s.Records[i], records[i])
		}
	}

	// Stored derived columns follow the digits
	var sum, tail, gap int
	var prize string
	if err := db.QueryRow(`SELECT prize, sum, tail, gap FROM draws WHERE issue = '2024001'`).Scan(&prize, &sum, &tail, &gap); err != nil {
		t.Fatalf("query derived: %v", err)
	}
	if prize != "087" || sum != 15 || tail != 5 || gap != 8 {
		t.Errorf("derived = %s/%d/%d/%d, want 087/15/5/8", prize, sum, tail, gap)
	}
}

func TestAppendDraws_SkipsKnownIssues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := AppendDraws(ctx, db, 2024, []draw.Record{rec("2024001", 1, 2, 3), rec("2024002", 4, 5, 6)}, 100); err != nil {
		t.Fatalf("first AppendDraws failed: %v", err)
	}

	// Source re-lists old issues alongside a new one
	added, err := AppendDraws(ctx, db, 2024, []draw.Record{
		rec("2024001", 1, 2, 3),
		rec("2024002", 4, 5, 6),
		rec("2024003", 7, 8, 9),
	}, 200)
	if err != nil {
		t.Fatalf("second AppendDraws failed: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	s, err := LoadYear(ctx, db, 2024)
	if err != nil {
		t.Fatalf("LoadYear failed: %v", err)
	}
	got := []string{}
	for _, r := range s.Records {
		got = append(got, r.Issue)
	}
	want := []string{"2024001", "2024002", "2024003"}
	if len(got) != len(want) {
		t.Fatalf("issues = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("issues[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAppendDraws_DuplicateWithinBatch(t *testing.T) {
	db := openTestDB(t)

	added, err := AppendDraws(context.Background(), db, 2024, []draw.Record{
		rec("2024001", 1, 2, 3),
		rec("2024001", 1, 2, 3),
	}, 100)
	if err != nil {
		t.Fatalf("AppendDraws failed: %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}
}

func TestAppendDraws_InvalidDigitRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := AppendDraws(ctx, db, 2024, []draw.Record{
		rec("2024001", 1, 2, 3),
		rec("2024002", 12, 2, 3),
	}, 100)
	if !errors.Is(err, errors.ErrMissingIndicatorColumn) {
		t.Fatalf("error = %v, want MISSING_INDICATOR_COLUMN", err)
	}

	n, err := CountDraws(ctx, db)
	if err != nil {
		t.Fatalf("CountDraws failed: %v", err)
	}
	if n != 0 {
		t.Errorf("CountDraws = %d, want 0 after rollback", n)
	}
}

func TestLoadYear_Empty(t *testing.T) {
	db := openTestDB(t)

	s, err := LoadYear(context.Background(), db, 1999)
	if err != nil {
		t.Fatalf("LoadYear failed: %v", err)
	}
	if s.Year != 1999 || s.Len() != 0 {
		t.Errorf("LoadYear = %+v, want empty 1999 series", s)
	}
}

func TestLoadAllAndListYears(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Insert the later year first; load order must still be ascending
	if _, err := AppendDraws(ctx, db, 2025, []draw.Record{rec("2025001", 3, 3, 3)}, 300); err != nil {
		t.Fatalf("AppendDraws 2025 failed: %v", err)
	}
	if _, err := AppendDraws(ctx, db, 2024, []draw.Record{rec("2024001", 1, 1, 1), rec("2024002", 2, 2, 2)}, 200); err != nil {
		t.Fatalf("AppendDraws 2024 failed: %v", err)
	}

	all, err := LoadAll(ctx, db)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(all) != 2 || all[0].Year != 2024 || all[1].Year != 2025 {
		t.Fatalf("LoadAll years = %+v, want [2024 2025]", all)
	}
	if all[0].Len() != 2 || all[1].Len() != 1 {
		t.Errorf("LoadAll lens = %d/%d, want 2/1", all[0].Len(), all[1].Len())
	}

	years, err := ListYears(ctx, db)
	if err != nil {
		t.Fatalf("ListYears failed: %v", err)
	}
	if len(years) != 2 {
		t.Fatalf("ListYears len = %d, want 2", len(years))
	}
	y := years[0]
	if y.Year != 2024 || y.Draws != 2 || y.FirstIssue != "2024001" || y.LastIssue != "2024002" || y.FetchedAt != 200 {
		t.Errorf("ListYears[0] = %+v", y)
	}
}

func TestListYears_EmptyIsNotNil(t *testing.T) {
	db := openTestDB(t)

	years, err := ListYears(context.Background(), db)
	if err != nil {
		t.Fatalf("ListYears failed: %v", err)
	}
	if years == nil || len(years) != 0 {
		t.Errorf("ListYears = %v, want empty non-nil slice", years)
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := &Run{ID: "01RUN1", Kind: "update", StartedAt: 100, Status: RunRunning}
	if err := InsertRun(ctx, db, r); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	finished := int64(160)
	r.FinishedAt = &finished
	r.Years = []int{2024}
	r.Added = 4
	r.Status = RunOK
	if err := FinishRun(ctx, db, r); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	second := &Run{ID: "01RUN2", Kind: "update-all", StartedAt: 200, Status: RunRunning}
	if err := InsertRun(ctx, db, second); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	runs, total, err := ListRuns(ctx, db, 10, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if total != 2 || len(runs) != 2 {
		t.Fatalf("ListRuns = %d runs, total %d; want 2/2", len(runs), total)
	}

	// Newest first
	if runs[0].ID != "01RUN2" || runs[0].FinishedAt != nil || runs[0].Status != RunRunning {
		t.Errorf("runs[0] = %+v", runs[0])
	}
	got := runs[1]
	if got.ID != "01RUN1" || got.Added != 4 || got.Status != RunOK || got.FinishedAt == nil || *got.FinishedAt != 160 {
		t.Errorf("runs[1] = %+v", got)
	}
	if len(got.Years) != 1 || got.Years[0] != 2024 {
		t.Errorf("runs[1].Years = %v, want [2024]", got.Years)
	}

	page, total, err := ListRuns(ctx, db, 1, 1)
	if err != nil {
		t.Fatalf("ListRuns page failed: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].ID != "01RUN1" {
		t.Errorf("ListRuns(1,1) = %+v total %d", page, total)
	}
}

func TestFinishRun_NotFound(t *testing.T) {
	db := openTestDB(t)

	err := FinishRun(context.Background(), db, &Run{ID: "missing", Status: RunFailed, Error: "boom"})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("FinishRun error = %v, want NOT_FOUND", err)
	}
}
