package engine

import (
	"context"
	"database/sql"
	"errors"

	"capworks/internal/domain"
)

// appendToScenario applies one run's eligible set to the book's active
// scenario inside the caller's transaction: each project is appended to the
// ordered tail in scan order and its annual period for the target year is
// stamped with the book id. The scenario turns outdated only when at least
// one entry was appended.
func (e Engine) appendToScenario(ctx context.Context, tx *sql.Tx, pb domain.ProgramBook, eligible []domain.Project, year int) error {
	if len(eligible) == 0 {
		return nil
	}
	scenario := pb.ActiveScenario()
	if scenario == nil {
		return errors.New("program book has no priority scenario")
	}
	rank := len(scenario.OrderedProjects)
	for _, p := range eligible {
		rank++
		if err := e.Repo.AppendOrderedProject(ctx, tx, scenario.ID, p.ID, rank); err != nil {
			return err
		}
		if err := e.Repo.SetAnnualPeriodProgramBook(ctx, tx, p.ID, year, pb.ID); err != nil {
			return err
		}
	}
	return e.Repo.MarkScenarioOutdated(ctx, tx, scenario.ID)
}
