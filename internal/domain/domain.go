package domain

// Closed status code sets. Taxonomy-coded identifiers (borough, executor,
// project type, program type) stay opaque strings validated at the boundary
// against the workspace taxonomy catalog.

const (
	AnnualProgramStatusNew         = "new"
	AnnualProgramStatusProgramming = "programming"
	AnnualProgramStatusSubmitted   = "submittedFinal"
)

const (
	ProgramBookStatusNew                  = "new"
	ProgramBookStatusProgramming          = "programming"
	ProgramBookStatusSubmittedPreliminary = "submittedPreliminary"
	ProgramBookStatusSubmittedFinal       = "submittedFinal"
	ProgramBookStatusValidated            = "validated"
)

const (
	ProjectStatusPlanned            = "planned"
	ProjectStatusPreliminaryOrdered = "preliminaryOrdered"
	ProjectStatusProgrammed         = "programmed"
	ProjectStatusPostponed          = "postponed"
	ProjectStatusReplanned          = "replanned"
	ProjectStatusCanceled           = "canceled"
)

// CityWideBorough is the wildcard borough code: a program book carrying it
// accepts projects from any borough.
const CityWideBorough = "MTL"

type AnnualProgram struct {
	ID          string `json:"id"`
	Year        int    `json:"year"`
	ExecutorID  string `json:"executor_id"`
	Status      string `json:"status" enum:"new,programming,submittedFinal"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type ProgramBook struct {
	ID              string   `json:"id"`
	AnnualProgramID string   `json:"annual_program_id"`
	Name            string   `json:"name"`
	Status          string   `json:"status" enum:"new,programming,submittedPreliminary,submittedFinal,validated"`
	InCharge        string   `json:"in_charge,omitempty"`
	ProjectTypes    []string `json:"project_types"`
	ProgramTypes    []string `json:"program_types,omitempty"`
	BoroughIDs      []string `json:"borough_ids,omitempty"`

	IsAutomaticLoadingInProgress bool   `json:"is_automatic_loading_in_progress"`
	LoadingStartedAt             string `json:"loading_started_at,omitempty" format:"date-time"`

	PriorityScenarios []PriorityScenario `json:"priority_scenarios,omitempty"`
	CreatedAt         string             `json:"created_at" format:"date-time"`
}

// ActiveScenario returns the scenario auto-loading appends to. The first
// scenario of a book is the active one; re-sequencing tooling may add more.
func (pb ProgramBook) ActiveScenario() *PriorityScenario {
	if len(pb.PriorityScenarios) == 0 {
		return nil
	}
	return &pb.PriorityScenarios[0]
}

type PriorityScenario struct {
	ID              string           `json:"id"`
	ProgramBookID   string           `json:"program_book_id"`
	Name            string           `json:"name"`
	IsOutdated      bool             `json:"is_outdated"`
	OrderedProjects []OrderedProject `json:"ordered_projects"`
}

// OrderedProject is one project's position within a priority scenario.
type OrderedProject struct {
	ProjectID string `json:"project_id"`
	Rank      int    `json:"rank"`
}

type Project struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status" enum:"planned,preliminaryOrdered,programmed,postponed,replanned,canceled"`
	ExecutorID    string `json:"executor_id"`
	ProjectTypeID string `json:"project_type_id"`
	BoroughID     string `json:"borough_id"`
	StartYear     int    `json:"start_year"`
	EndYear       int    `json:"end_year"`

	AnnualPeriods []AnnualPeriod `json:"annual_periods,omitempty"`
	CreatedAt     string         `json:"created_at" format:"date-time"`
}

// AnnualPeriod records one year of a project's annual distribution. A
// non-empty ProgramBookID means the project is committed to that book for
// the year; at most one assignment exists per project and year.
type AnnualPeriod struct {
	ProjectID     string `json:"project_id"`
	Year          int    `json:"year"`
	ProgramBookID string `json:"program_book_id,omitempty"`
}

// AnnualPeriodFor returns the project's period for the given year, or nil
// when the year falls outside its distribution.
func (p Project) AnnualPeriodFor(year int) *AnnualPeriod {
	for i := range p.AnnualPeriods {
		if p.AnnualPeriods[i].Year == year {
			return &p.AnnualPeriods[i]
		}
	}
	return nil
}

type Intervention struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	ProgramID string `json:"program_id"`
	BoroughID string `json:"borough_id,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
