package engine

import (
	"context"
	"fmt"

	"capworks/internal/domain"
)

// CompatibleProgramBooks answers "which program books could this one
// project join", reusing the same predicate the batch loader applies. Used
// by the interactive assignment flow.
func (e Engine) CompatibleProgramBooks(ctx context.Context, projectID string) ([]domain.ProgramBook, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	linked, err := e.Repo.ListInterventionsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	books, err := e.Repo.ListProgramBooks(ctx, "")
	if err != nil {
		return nil, err
	}
	programs := map[string]domain.AnnualProgram{}
	for _, pb := range books {
		if _, ok := programs[pb.AnnualProgramID]; ok {
			continue
		}
		ap, err := e.Repo.GetAnnualProgram(ctx, pb.AnnualProgramID)
		if err != nil {
			return nil, err
		}
		programs[pb.AnnualProgramID] = ap
	}
	return FilterCompatible(p, books, programs, linked, e.Config.ProgramFromInterventions(p.ProjectTypeID)), nil
}

// FilterCompatible is the pure form: it keeps the candidate books the
// project is eligible for, each judged against its owning annual program.
func FilterCompatible(p domain.Project, books []domain.ProgramBook, programs map[string]domain.AnnualProgram, linked []domain.Intervention, programFromInterventions bool) []domain.ProgramBook {
	var res []domain.ProgramBook
	for _, pb := range books {
		ap, ok := programs[pb.AnnualProgramID]
		if !ok {
			continue
		}
		if Eligible(p, pb, ap, linked, programFromInterventions) {
			res = append(res, pb)
		}
	}
	return res
}
