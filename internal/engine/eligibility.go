package engine

import (
	"capworks/internal/domain"
)

// Eligible answers whether a project may join a program book for the
// owning annual program's year. Pure and order-independent; the batch
// loader and the single-project compatibility query share it, so the two
// paths can never disagree.
//
// programFromInterventions tells whether the project's type carries its
// program classification on linked interventions (taxonomy configuration);
// when false the program-type dimension is vacuously satisfied.
func Eligible(p domain.Project, pb domain.ProgramBook, ap domain.AnnualProgram, linked []domain.Intervention, programFromInterventions bool) bool {
	if p.Status == domain.ProjectStatusCanceled {
		return false
	}
	if ap.Status != domain.AnnualProgramStatusProgramming {
		return false
	}
	if ap.ExecutorID != p.ExecutorID {
		return false
	}
	if ap.Year < p.StartYear || ap.Year > p.EndYear {
		return false
	}
	if !projectTypeAllowed(p, pb) {
		return false
	}
	if !boroughAllowed(p, pb) {
		return false
	}
	if !programTypeAllowed(pb, linked, programFromInterventions) {
		return false
	}
	return yearStillFree(p, ap.Year)
}

func projectTypeAllowed(p domain.Project, pb domain.ProgramBook) bool {
	if len(pb.ProjectTypes) == 0 {
		return true
	}
	for _, t := range pb.ProjectTypes {
		if t == p.ProjectTypeID {
			return true
		}
	}
	return false
}

func boroughAllowed(p domain.Project, pb domain.ProgramBook) bool {
	if len(pb.BoroughIDs) == 0 {
		return true
	}
	for _, b := range pb.BoroughIDs {
		if b == domain.CityWideBorough || b == p.BoroughID {
			return true
		}
	}
	return false
}

func programTypeAllowed(pb domain.ProgramBook, linked []domain.Intervention, programFromInterventions bool) bool {
	if len(pb.ProgramTypes) == 0 || !programFromInterventions {
		return true
	}
	for _, iv := range linked {
		for _, pt := range pb.ProgramTypes {
			if iv.ProgramID == pt {
				return true
			}
		}
	}
	return false
}

// yearStillFree enforces exclusivity: a project already committed to any
// program book for the target year may not be loaded again.
func yearStillFree(p domain.Project, year int) bool {
	ap := p.AnnualPeriodFor(year)
	return ap == nil || ap.ProgramBookID == ""
}

// isEligible is Eligible with the program-type resolution mode looked up
// from the workspace taxonomy.
func (e Engine) isEligible(p domain.Project, pb domain.ProgramBook, ap domain.AnnualProgram, linked []domain.Intervention) bool {
	return Eligible(p, pb, ap, linked, e.Config.ProgramFromInterventions(p.ProjectTypeID))
}
