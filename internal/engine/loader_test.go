package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"capworks/internal/config"
	"capworks/internal/db"
	"capworks/internal/domain"
	"capworks/internal/engine"
	"capworks/internal/migrate"
	"capworks/internal/worker"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(), nil)
	eng.Now = func() time.Time { return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func (env testEnv) createProgram(t *testing.T, year int) domain.AnnualProgram {
	t.Helper()
	ap, err := env.Engine.CreateAnnualProgram(env.Ctx, engine.AnnualProgramCreateOptions{
		Year:       year,
		ExecutorID: "di",
		Status:     domain.AnnualProgramStatusProgramming,
		ActorID:    "tester",
	})
	if err != nil {
		t.Fatalf("create annual program: %v", err)
	}
	return ap
}

func (env testEnv) createBook(t *testing.T, annualProgramID string, opts engine.ProgramBookCreateOptions) domain.ProgramBook {
	t.Helper()
	opts.AnnualProgramID = annualProgramID
	if opts.Name == "" {
		opts.Name = "book"
	}
	if opts.Status == "" {
		opts.Status = domain.ProgramBookStatusProgramming
	}
	opts.ActorID = "tester"
	pb, err := env.Engine.CreateProgramBook(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create program book: %v", err)
	}
	return pb
}

func (env testEnv) createProject(t *testing.T, opts engine.ProjectCreateOptions) domain.Project {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "project"
	}
	if opts.ExecutorID == "" {
		opts.ExecutorID = "di"
	}
	if opts.ProjectTypeID == "" {
		opts.ProjectTypeID = "integrated"
	}
	if opts.BoroughID == "" {
		opts.BoroughID = "VM"
	}
	if opts.StartYear == 0 {
		opts.StartYear = 2026
	}
	if opts.EndYear == 0 {
		opts.EndYear = 2027
	}
	opts.ActorID = "tester"
	p, err := env.Engine.CreateProject(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func (env testEnv) activeScenario(t *testing.T, programBookID string) domain.PriorityScenario {
	t.Helper()
	pb, err := env.Engine.Repo.GetProgramBook(env.Ctx, programBookID)
	if err != nil {
		t.Fatalf("get program book: %v", err)
	}
	sc := pb.ActiveScenario()
	if sc == nil {
		t.Fatalf("program book %s has no scenario", programBookID)
	}
	return *sc
}

func TestAutomaticLoadingAppendsEligibleProjects(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{BoroughIDs: []string{"VM"}})

	eligible := env.createProject(t, engine.ProjectCreateOptions{Name: "eligible"})
	env.createProject(t, engine.ProjectCreateOptions{Name: "canceled", Status: domain.ProjectStatusCanceled})
	env.createProject(t, engine.ProjectCreateOptions{Name: "other borough", BoroughID: "AC"})

	if err := env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester"); err != nil {
		t.Fatalf("trigger loading: %v", err)
	}

	sc := env.activeScenario(t, pb.ID)
	if len(sc.OrderedProjects) != 1 {
		t.Fatalf("expected 1 ordered project, got %d", len(sc.OrderedProjects))
	}
	if sc.OrderedProjects[0].ProjectID != eligible.ID || sc.OrderedProjects[0].Rank != 1 {
		t.Fatalf("unexpected ordered project %+v", sc.OrderedProjects[0])
	}
	if !sc.IsOutdated {
		t.Fatal("scenario should be outdated after membership changed")
	}

	p, err := env.Engine.Repo.GetProject(env.Ctx, eligible.ID)
	if err != nil {
		t.Fatal(err)
	}
	period := p.AnnualPeriodFor(2026)
	if period == nil || period.ProgramBookID != pb.ID {
		t.Fatalf("annual period 2026 not stamped with %s: %+v", pb.ID, period)
	}

	book, err := env.Engine.Repo.GetProgramBook(env.Ctx, pb.ID)
	if err != nil {
		t.Fatal(err)
	}
	if book.IsAutomaticLoadingInProgress {
		t.Fatal("loading flag should be cleared after the run")
	}
}

func TestAutomaticLoadingIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{})
	env.createProject(t, engine.ProjectCreateOptions{})

	for i := 0; i < 2; i++ {
		if err := env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester"); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}
	sc := env.activeScenario(t, pb.ID)
	if len(sc.OrderedProjects) != 1 {
		t.Fatalf("rerun must not duplicate entries, got %d", len(sc.OrderedProjects))
	}
}

func TestAutomaticLoadingRespectsYearExclusivity(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	first := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{Name: "first"})
	second := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{Name: "second"})
	env.createProject(t, engine.ProjectCreateOptions{})

	if err := env.Engine.TriggerAutomaticLoading(env.Ctx, first.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.TriggerAutomaticLoading(env.Ctx, second.ID, "tester"); err != nil {
		t.Fatal(err)
	}

	if got := env.activeScenario(t, first.ID).OrderedProjects; len(got) != 1 {
		t.Fatalf("first book should hold the project, got %d entries", len(got))
	}
	sc := env.activeScenario(t, second.ID)
	if len(sc.OrderedProjects) != 0 {
		t.Fatalf("second book must not load a project already committed for the year")
	}
	if sc.IsOutdated {
		t.Fatal("scenario untouched by the run must stay current")
	}
}

func TestTriggerRejectedWhileLoadingInProgress(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{})

	held := env.Engine.Now().UTC().Format(time.RFC3339)
	acquired, err := env.Engine.Repo.TryAcquireLoading(env.Ctx, pb.ID, held)
	if err != nil || !acquired {
		t.Fatalf("seed lock: acquired=%v err=%v", acquired, err)
	}

	err = env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester")
	var lip engine.LoadingInProgressError
	if !errors.As(err, &lip) || lip.ProgramBookID != pb.ID {
		t.Fatalf("expected LoadingInProgressError for %s, got %v", pb.ID, err)
	}
}

func TestStaleLoadingLockIsTakenOver(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{})
	env.createProject(t, engine.ProjectCreateOptions{})

	stale := env.Engine.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
	if acquired, err := env.Engine.Repo.TryAcquireLoading(env.Ctx, pb.ID, stale); err != nil || !acquired {
		t.Fatalf("seed stale lock: acquired=%v err=%v", acquired, err)
	}

	if err := env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester"); err != nil {
		t.Fatalf("stale lock should be taken over: %v", err)
	}
	if got := env.activeScenario(t, pb.ID).OrderedProjects; len(got) != 1 {
		t.Fatalf("takeover run should complete, got %d entries", len(got))
	}
	book, err := env.Engine.Repo.GetProgramBook(env.Ctx, pb.ID)
	if err != nil {
		t.Fatal(err)
	}
	if book.IsAutomaticLoadingInProgress {
		t.Fatal("lock must be released after the takeover run")
	}
}

func TestTriggerRejectsNonLoadableStatus(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{Status: domain.ProgramBookStatusNew})

	err := env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester")
	var ise engine.InvalidStatusError
	if !errors.As(err, &ise) || ise.Status != domain.ProgramBookStatusNew {
		t.Fatalf("expected InvalidStatusError, got %v", err)
	}

	book, err := env.Engine.Repo.GetProgramBook(env.Ctx, pb.ID)
	if err != nil {
		t.Fatal(err)
	}
	if book.IsAutomaticLoadingInProgress {
		t.Fatal("rejected trigger must not leave the lock held")
	}
}

func TestResetLoadingClearsLock(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{})

	held := env.Engine.Now().UTC().Format(time.RFC3339)
	if acquired, err := env.Engine.Repo.TryAcquireLoading(env.Ctx, pb.ID, held); err != nil || !acquired {
		t.Fatalf("seed lock: acquired=%v err=%v", acquired, err)
	}
	if err := env.Engine.ResetLoading(env.Ctx, pb.ID, "admin"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	book, err := env.Engine.Repo.GetProgramBook(env.Ctx, pb.ID)
	if err != nil {
		t.Fatal(err)
	}
	if book.IsAutomaticLoadingInProgress {
		t.Fatal("reset should clear the lock")
	}
	// resetting an unlocked book is a no-op
	if err := env.Engine.ResetLoading(env.Ctx, pb.ID, "admin"); err != nil {
		t.Fatalf("reset on unlocked book: %v", err)
	}
}

func TestAutomaticLoadingResolvesProgramTypesThroughInterventions(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{
		ProjectTypes: []string{"nonIntegrated"},
		ProgramTypes: []string{"par"},
	})
	matching := env.createProject(t, engine.ProjectCreateOptions{Name: "with par", ProjectTypeID: "nonIntegrated"})
	env.createProject(t, engine.ProjectCreateOptions{Name: "without interventions", ProjectTypeID: "nonIntegrated"})

	if _, err := env.Engine.CreateIntervention(env.Ctx, engine.InterventionCreateOptions{
		ProjectID: matching.ID,
		ProgramID: "par",
		ActorID:   "tester",
	}); err != nil {
		t.Fatalf("create intervention: %v", err)
	}

	if err := env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	sc := env.activeScenario(t, pb.ID)
	if len(sc.OrderedProjects) != 1 || sc.OrderedProjects[0].ProjectID != matching.ID {
		t.Fatalf("only the project with a matching intervention should load, got %+v", sc.OrderedProjects)
	}
}

func TestBackgroundRunnerCompletesRun(t *testing.T) {
	env := newTestEnv(t)
	runner := worker.New(4)
	defer runner.Shutdown()
	env.Engine.Runner = runner

	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{})
	env.createProject(t, engine.ProjectCreateOptions{})

	if err := env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	runner.Wait()

	book, err := env.Engine.Repo.GetProgramBook(env.Ctx, pb.ID)
	if err != nil {
		t.Fatal(err)
	}
	if book.IsAutomaticLoadingInProgress {
		t.Fatal("flag should be cleared once the background run finishes")
	}
	if got := env.activeScenario(t, pb.ID).OrderedProjects; len(got) != 1 {
		t.Fatalf("background run should append the eligible project, got %d", len(got))
	}
}

func TestCompatibleProgramBooksQuery(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	matching := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{Name: "matching", BoroughIDs: []string{"VM"}})
	env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{Name: "wrong borough", BoroughIDs: []string{"AC"}})
	p := env.createProject(t, engine.ProjectCreateOptions{})

	books, err := env.Engine.CompatibleProgramBooks(env.Ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 1 || books[0].ID != matching.ID {
		t.Fatalf("expected only %s, got %d books", matching.ID, len(books))
	}
}

func TestLoadingAndCompletionEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	ap := env.createProgram(t, 2026)
	pb := env.createBook(t, ap.ID, engine.ProgramBookCreateOptions{})
	env.createProject(t, engine.ProjectCreateOptions{})

	if err := env.Engine.TriggerAutomaticLoading(env.Ctx, pb.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.Repo.ListEvents(env.Ctx, pb.ID, 20)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, evt := range evts {
		seen[evt.Type] = true
	}
	if !seen["programbook.autoload.started"] || !seen["programbook.autoload.completed"] {
		t.Fatalf("expected started and completed events, got %v", seen)
	}
}
