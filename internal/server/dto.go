package server

import (
	"capworks/internal/domain"
)

// Request payloads

type CreateAnnualProgramRequest struct {
	ID          *string `json:"id,omitempty"`
	Year        int     `json:"year"`
	ExecutorID  string  `json:"executor_id"`
	Status      *string `json:"status,omitempty" enum:"new,programming,submittedFinal"`
	Description *string `json:"description,omitempty"`
}

type CreateProgramBookRequest struct {
	ID           *string  `json:"id,omitempty"`
	Name         string   `json:"name"`
	Status       *string  `json:"status,omitempty" enum:"new,programming,submittedPreliminary,submittedFinal,validated"`
	InCharge     *string  `json:"in_charge,omitempty"`
	ProjectTypes []string `json:"project_types,omitempty"`
	ProgramTypes []string `json:"program_types,omitempty"`
	BoroughIDs   []string `json:"borough_ids,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type CreateProjectRequest struct {
	ID            *string `json:"id,omitempty"`
	Name          string  `json:"name"`
	Status        *string `json:"status,omitempty" enum:"planned,preliminaryOrdered,programmed,postponed,replanned,canceled"`
	ExecutorID    string  `json:"executor_id"`
	ProjectTypeID string  `json:"project_type_id"`
	BoroughID     string  `json:"borough_id"`
	StartYear     int     `json:"start_year"`
	EndYear       int     `json:"end_year"`
}

type CreateInterventionRequest struct {
	ID        *string `json:"id,omitempty"`
	Name      *string `json:"name,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	ProgramID string  `json:"program_id"`
	BoroughID *string `json:"borough_id,omitempty"`
}

type AssignInterventionRequest struct {
	ProjectID string `json:"project_id"`
}

// Response payloads

// LoadAckResponse acknowledges a triggered run; the run itself continues in
// the background.
type LoadAckResponse struct {
	ProgramBookID string `json:"program_book_id"`
	Status        string `json:"status" enum:"loading"`
}

type ProgramBookSummary struct {
	ID                           string   `json:"id"`
	AnnualProgramID              string   `json:"annual_program_id"`
	Name                         string   `json:"name"`
	Status                       string   `json:"status"`
	ProjectTypes                 []string `json:"project_types,omitempty"`
	ProgramTypes                 []string `json:"program_types,omitempty"`
	BoroughIDs                   []string `json:"borough_ids,omitempty"`
	IsAutomaticLoadingInProgress bool     `json:"is_automatic_loading_in_progress"`
}

func programBookSummary(pb domain.ProgramBook) ProgramBookSummary {
	return ProgramBookSummary{
		ID:                           pb.ID,
		AnnualProgramID:              pb.AnnualProgramID,
		Name:                         pb.Name,
		Status:                       pb.Status,
		ProjectTypes:                 pb.ProjectTypes,
		ProgramTypes:                 pb.ProgramTypes,
		BoroughIDs:                   pb.BoroughIDs,
		IsAutomaticLoadingInProgress: pb.IsAutomaticLoadingInProgress,
	}
}

func programBookSummaries(books []domain.ProgramBook) []ProgramBookSummary {
	res := make([]ProgramBookSummary, 0, len(books))
	for _, pb := range books {
		res = append(res, programBookSummary(pb))
	}
	return res
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
