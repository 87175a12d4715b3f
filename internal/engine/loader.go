package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"capworks/internal/domain"
	"capworks/internal/events"
	"capworks/internal/logger"
	"capworks/internal/repo"
)

// TriggerAutomaticLoading starts an automatic-loading run for a program
// book. Precondition checks and lock acquisition happen synchronously;
// the scan, eligibility evaluation and scenario mutation run in the
// background after this returns. Callers detect completion by polling the
// book's is_automatic_loading_in_progress flag.
func (e Engine) TriggerAutomaticLoading(ctx context.Context, programBookID, actorID string) error {
	_, ap, err := e.BeginLoading(ctx, programBookID)
	if err != nil {
		return err
	}
	if err := e.appendEvent(ctx, "programbook.autoload.started", programBookID, actorID, events.EventPayload{"year": ap.Year}); err != nil {
		_ = e.EndLoading(ctx, programBookID)
		return err
	}
	if e.Runner == nil {
		// no runner wired (CLI local mode): run to completion in place
		e.runLoading(ctx, programBookID, ap, actorID)
		return nil
	}
	if err := e.Runner.Submit("autoload:"+programBookID, func(bg context.Context) {
		e.runLoading(bg, programBookID, ap, actorID)
	}); err != nil {
		_ = e.EndLoading(ctx, programBookID)
		return fmt.Errorf("schedule loading run: %w", err)
	}
	return nil
}

// runLoading is the background phase. Its failures are logged, never
// surfaced to the triggering caller; the run is left incomplete rather than
// retried. The lock release is unconditional.
func (e Engine) runLoading(ctx context.Context, programBookID string, ap domain.AnnualProgram, actorID string) {
	defer func() {
		if err := e.EndLoading(ctx, programBookID); err != nil {
			logger.L().Error("release loading lock failed",
				zap.String("program_book_id", programBookID), zap.Error(err))
		}
	}()

	appended, scanned, err := e.loadEligibleProjects(ctx, programBookID, ap)
	if err != nil {
		logger.L().Error("automatic loading failed",
			zap.String("program_book_id", programBookID), zap.Error(err))
		_ = e.appendEvent(ctx, "programbook.autoload.failed", programBookID, actorID, events.EventPayload{"error": err.Error()})
		return
	}
	logger.L().Info("automatic loading completed",
		zap.String("program_book_id", programBookID),
		zap.Int("scanned", scanned),
		zap.Int("appended", appended))
	_ = e.appendEvent(ctx, "programbook.autoload.completed", programBookID, actorID, events.EventPayload{"scanned": scanned, "appended": appended})
}

// loadEligibleProjects scans the candidate universe and applies the eligible
// subset to the book in a single transaction, so a failure rolls back every
// project stamp and scenario append together.
func (e Engine) loadEligibleProjects(ctx context.Context, programBookID string, ap domain.AnnualProgram) (appended, scanned int, err error) {
	// re-read under the lock; the pre-acquisition snapshot may be stale
	pb, err := e.Repo.GetProgramBook(ctx, programBookID)
	if err != nil {
		return 0, 0, err
	}

	// coarse pre-filter; the eligibility predicate stays authoritative
	candidates, err := e.Repo.ListProjects(ctx, repo.ProjectFilter{
		ExecutorID:    ap.ExecutorID,
		ExcludeStatus: domain.ProjectStatusCanceled,
		YearOverlap:   ap.Year,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("scan candidate projects: %w", err)
	}

	var needInterventions []string
	for _, p := range candidates {
		if e.Config.ProgramFromInterventions(p.ProjectTypeID) {
			needInterventions = append(needInterventions, p.ID)
		}
	}
	linked := map[string][]domain.Intervention{}
	if len(needInterventions) > 0 && len(pb.ProgramTypes) > 0 {
		linked, err = e.Repo.ListInterventionsForProjects(ctx, needInterventions)
		if err != nil {
			return 0, 0, fmt.Errorf("fetch linked interventions: %w", err)
		}
	}

	var eligible []domain.Project
	for _, p := range candidates {
		if e.isEligible(p, pb, ap, linked[p.ID]) {
			eligible = append(eligible, p)
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()
	if err := e.appendToScenario(ctx, tx, pb, eligible, ap.Year); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return len(eligible), len(candidates), nil
}

func (e Engine) appendEvent(ctx context.Context, evtType, entityID, actorID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, "program_book", entityID, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}
