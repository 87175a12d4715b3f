package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"capworks/internal/domain"
	"capworks/internal/events"
	"capworks/internal/logger"
)

// loadableStatuses are the program book statuses automatic loading accepts.
var loadableStatuses = map[string]bool{
	domain.ProgramBookStatusProgramming:          true,
	domain.ProgramBookStatusSubmittedPreliminary: true,
}

// BeginLoading checks the loading preconditions in order and, on success,
// persists the in-progress flag before returning. The flag is the advisory
// lock: it must be visible to every process sharing the store before any
// scan work starts.
//
// A flag older than the configured staleness window is treated as abandoned
// by a crashed run and taken over.
func (e Engine) BeginLoading(ctx context.Context, programBookID string) (domain.ProgramBook, domain.AnnualProgram, error) {
	pb, err := e.Repo.GetProgramBook(ctx, programBookID)
	if err != nil {
		return domain.ProgramBook{}, domain.AnnualProgram{}, fmt.Errorf("program book %s: %w", programBookID, err)
	}
	ap, err := e.Repo.GetAnnualProgram(ctx, pb.AnnualProgramID)
	if err != nil {
		return domain.ProgramBook{}, domain.AnnualProgram{}, fmt.Errorf("annual program %s: %w", pb.AnnualProgramID, err)
	}
	if pb.IsAutomaticLoadingInProgress {
		if !e.loadingIsStale(pb) {
			return domain.ProgramBook{}, domain.AnnualProgram{}, LoadingInProgressError{ProgramBookID: pb.ID}
		}
		logger.L().Warn("taking over stale loading lock",
			zap.String("program_book_id", pb.ID),
			zap.String("loading_started_at", pb.LoadingStartedAt))
		if err := e.Repo.ReleaseLoading(ctx, pb.ID); err != nil {
			return domain.ProgramBook{}, domain.AnnualProgram{}, err
		}
	}
	if !loadableStatuses[pb.Status] {
		return domain.ProgramBook{}, domain.AnnualProgram{}, InvalidStatusError{ProgramBookID: pb.ID, Status: pb.Status}
	}
	acquired, err := e.Repo.TryAcquireLoading(ctx, pb.ID, e.nowRFC3339())
	if err != nil {
		return domain.ProgramBook{}, domain.AnnualProgram{}, err
	}
	if !acquired {
		return domain.ProgramBook{}, domain.AnnualProgram{}, LoadingInProgressError{ProgramBookID: pb.ID}
	}
	pb.IsAutomaticLoadingInProgress = true
	pb.LoadingStartedAt = e.nowRFC3339()
	return pb, ap, nil
}

func (e Engine) loadingIsStale(pb domain.ProgramBook) bool {
	if pb.LoadingStartedAt == "" {
		return true
	}
	started, err := time.Parse(time.RFC3339, pb.LoadingStartedAt)
	if err != nil {
		return true
	}
	return e.now().Sub(started) > e.Config.StaleAfter()
}

// EndLoading clears the persisted flag. It runs on every exit path of a
// loading run, including failures, so a crash window is the only way to
// leave a book locked.
func (e Engine) EndLoading(ctx context.Context, programBookID string) error {
	return e.Repo.ReleaseLoading(ctx, programBookID)
}

// ResetLoading is the administrative lock reset for a book stuck after a
// crash. It clears the flag regardless of age and records the intervention.
func (e Engine) ResetLoading(ctx context.Context, programBookID, actorID string) error {
	pb, err := e.Repo.GetProgramBook(ctx, programBookID)
	if err != nil {
		return fmt.Errorf("program book %s: %w", programBookID, err)
	}
	if !pb.IsAutomaticLoadingInProgress {
		return nil
	}
	if err := e.Repo.ReleaseLoading(ctx, pb.ID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "programbook.unlock", "program_book", pb.ID, actorID, events.EventPayload{"loading_started_at": pb.LoadingStartedAt}); err != nil {
		return err
	}
	return tx.Commit()
}
