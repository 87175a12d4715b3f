package engine_test

import (
	"testing"

	"capworks/internal/domain"
	"capworks/internal/engine"
)

func baseProject() domain.Project {
	return domain.Project{
		ID:            "p-1",
		Name:          "Main street reconstruction",
		Status:        domain.ProjectStatusPlanned,
		ExecutorID:    "di",
		ProjectTypeID: "integrated",
		BoroughID:     "VM",
		StartYear:     2026,
		EndYear:       2028,
		AnnualPeriods: []domain.AnnualPeriod{
			{ProjectID: "p-1", Year: 2026},
			{ProjectID: "p-1", Year: 2027},
			{ProjectID: "p-1", Year: 2028},
		},
	}
}

func baseBook() domain.ProgramBook {
	return domain.ProgramBook{
		ID:              "pb-1",
		AnnualProgramID: "ap-1",
		Name:            "Roads 2026",
		Status:          domain.ProgramBookStatusProgramming,
		ProjectTypes:    []string{"integrated"},
		BoroughIDs:      []string{"VM"},
	}
}

func baseProgram() domain.AnnualProgram {
	return domain.AnnualProgram{
		ID:         "ap-1",
		Year:       2026,
		ExecutorID: "di",
		Status:     domain.AnnualProgramStatusProgramming,
	}
}

func TestEligibleAllDimensionsPass(t *testing.T) {
	if !engine.Eligible(baseProject(), baseBook(), baseProgram(), nil, false) {
		t.Fatal("expected project to be eligible")
	}
}

func TestEligibleSingleDimensionViolations(t *testing.T) {
	cases := []struct {
		name    string
		project func(*domain.Project)
		book    func(*domain.ProgramBook)
		program func(*domain.AnnualProgram)
	}{
		{name: "canceled project", project: func(p *domain.Project) { p.Status = domain.ProjectStatusCanceled }},
		{name: "annual program not programming", program: func(ap *domain.AnnualProgram) { ap.Status = domain.AnnualProgramStatusNew }},
		{name: "executor mismatch", program: func(ap *domain.AnnualProgram) { ap.ExecutorID = "deeu" }},
		{name: "year before window", program: func(ap *domain.AnnualProgram) { ap.Year = 2025 }},
		{name: "year after window", program: func(ap *domain.AnnualProgram) { ap.Year = 2029 }},
		{name: "project type not allowed", book: func(pb *domain.ProgramBook) { pb.ProjectTypes = []string{"nonIntegrated"} }},
		{name: "borough not allowed", book: func(pb *domain.ProgramBook) { pb.BoroughIDs = []string{"AC"} }},
		{name: "year already committed", project: func(p *domain.Project) { p.AnnualPeriods[0].ProgramBookID = "pb-other" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, pb, ap := baseProject(), baseBook(), baseProgram()
			if tc.project != nil {
				tc.project(&p)
			}
			if tc.book != nil {
				tc.book(&pb)
			}
			if tc.program != nil {
				tc.program(&ap)
			}
			if engine.Eligible(p, pb, ap, nil, false) {
				t.Fatal("expected project to be ineligible")
			}
		})
	}
}

func TestEligibleEmptyCriteriaAreUnrestricted(t *testing.T) {
	p, pb, ap := baseProject(), baseBook(), baseProgram()
	pb.ProjectTypes = nil
	pb.BoroughIDs = nil
	if !engine.Eligible(p, pb, ap, nil, false) {
		t.Fatal("empty project type and borough lists should accept any project")
	}
}

func TestEligibleCityWideBoroughMatchesAny(t *testing.T) {
	p, pb, ap := baseProject(), baseBook(), baseProgram()
	p.BoroughID = "RDPPAT"
	pb.BoroughIDs = []string{domain.CityWideBorough}
	if !engine.Eligible(p, pb, ap, nil, false) {
		t.Fatal("MTL should match any borough")
	}
}

func TestEligibleProgramTypeFromInterventions(t *testing.T) {
	p, pb, ap := baseProject(), baseBook(), baseProgram()
	p.ProjectTypeID = "nonIntegrated"
	pb.ProjectTypes = []string{"nonIntegrated"}
	pb.ProgramTypes = []string{"par"}

	if engine.Eligible(p, pb, ap, nil, true) {
		t.Fatal("no linked intervention carries an allowed program type")
	}
	linked := []domain.Intervention{{ID: "iv-1", ProjectID: p.ID, ProgramID: "egout"}}
	if engine.Eligible(p, pb, ap, linked, true) {
		t.Fatal("egout is not in the book's program types")
	}
	linked = append(linked, domain.Intervention{ID: "iv-2", ProjectID: p.ID, ProgramID: "par"})
	if !engine.Eligible(p, pb, ap, linked, true) {
		t.Fatal("one matching intervention should satisfy the program-type dimension")
	}
}

func TestEligibleProgramTypeIgnoredForSelfClassifiedTypes(t *testing.T) {
	p, pb, ap := baseProject(), baseBook(), baseProgram()
	pb.ProgramTypes = []string{"par"}
	// integrated projects carry their own classification; the book's
	// program types do not constrain them
	if !engine.Eligible(p, pb, ap, nil, false) {
		t.Fatal("program types should not apply to self-classified project types")
	}
}

func TestFilterCompatible(t *testing.T) {
	p := baseProject()
	matching := baseBook()
	wrongBorough := baseBook()
	wrongBorough.ID = "pb-2"
	wrongBorough.BoroughIDs = []string{"AC"}
	orphan := baseBook()
	orphan.ID = "pb-3"
	orphan.AnnualProgramID = "ap-missing"
	programs := map[string]domain.AnnualProgram{"ap-1": baseProgram()}

	res := engine.FilterCompatible(p, []domain.ProgramBook{matching, wrongBorough, orphan}, programs, nil, false)
	if len(res) != 1 || res[0].ID != matching.ID {
		t.Fatalf("expected only %s, got %d books", matching.ID, len(res))
	}
}
