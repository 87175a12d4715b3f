package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"capworks/internal/config"
	"capworks/internal/domain"
	"capworks/internal/events"
	"capworks/internal/repo"
	"capworks/internal/worker"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Runner *worker.Runner
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, runner *worker.Runner) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Runner: runner,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func newID(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return uuid.NewString()
}

// AnnualProgramCreateOptions are parameters for creating an annual program.
type AnnualProgramCreateOptions struct {
	ID          string
	Year        int
	ExecutorID  string
	Status      string
	Description string
	ActorID     string
}

func (e Engine) CreateAnnualProgram(ctx context.Context, opts AnnualProgramCreateOptions) (domain.AnnualProgram, error) {
	if opts.Year < 2000 || opts.Year > 3000 {
		return domain.AnnualProgram{}, validationf("year %d out of range", opts.Year)
	}
	if !e.Config.KnownExecutor(opts.ExecutorID) {
		return domain.AnnualProgram{}, validationf("unknown executor %s", opts.ExecutorID)
	}
	if opts.Status == "" {
		opts.Status = domain.AnnualProgramStatusNew
	}
	switch opts.Status {
	case domain.AnnualProgramStatusNew, domain.AnnualProgramStatusProgramming, domain.AnnualProgramStatusSubmitted:
	default:
		return domain.AnnualProgram{}, validationf("invalid annual program status %s", opts.Status)
	}
	ap := domain.AnnualProgram{
		ID:          newID(opts.ID),
		Year:        opts.Year,
		ExecutorID:  opts.ExecutorID,
		Status:      opts.Status,
		Description: opts.Description,
		CreatedAt:   e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AnnualProgram{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAnnualProgram(ctx, tx, ap); err != nil {
		return domain.AnnualProgram{}, err
	}
	if err := e.Events.Append(ctx, tx, "annualprogram.create", "annual_program", ap.ID, opts.ActorID, events.EventPayload{"year": ap.Year, "executor_id": ap.ExecutorID}); err != nil {
		return domain.AnnualProgram{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AnnualProgram{}, err
	}
	return ap, nil
}

// ProgramBookCreateOptions are parameters for creating a program book.
type ProgramBookCreateOptions struct {
	ID              string
	AnnualProgramID string
	Name            string
	Status          string
	InCharge        string
	ProjectTypes    []string
	ProgramTypes    []string
	BoroughIDs      []string
	ActorID         string
}

func (e Engine) CreateProgramBook(ctx context.Context, opts ProgramBookCreateOptions) (domain.ProgramBook, error) {
	if opts.Name == "" {
		return domain.ProgramBook{}, validationf("name is required")
	}
	if _, err := e.Repo.GetAnnualProgram(ctx, opts.AnnualProgramID); err != nil {
		return domain.ProgramBook{}, fmt.Errorf("annual program %s: %w", opts.AnnualProgramID, err)
	}
	if opts.Status == "" {
		opts.Status = domain.ProgramBookStatusNew
	}
	if !validProgramBookStatus(opts.Status) {
		return domain.ProgramBook{}, validationf("invalid program book status %s", opts.Status)
	}
	for _, t := range opts.ProjectTypes {
		if !e.Config.KnownProjectType(t) {
			return domain.ProgramBook{}, validationf("unknown project type %s", t)
		}
	}
	for _, t := range opts.ProgramTypes {
		if !e.Config.KnownProgramType(t) {
			return domain.ProgramBook{}, validationf("unknown program type %s", t)
		}
	}
	for _, b := range opts.BoroughIDs {
		if !e.Config.KnownBorough(b) {
			return domain.ProgramBook{}, validationf("unknown borough %s", b)
		}
	}
	pb := domain.ProgramBook{
		ID:              newID(opts.ID),
		AnnualProgramID: opts.AnnualProgramID,
		Name:            opts.Name,
		Status:          opts.Status,
		InCharge:        opts.InCharge,
		ProjectTypes:    opts.ProjectTypes,
		ProgramTypes:    opts.ProgramTypes,
		BoroughIDs:      opts.BoroughIDs,
		CreatedAt:       e.nowRFC3339(),
	}
	pb.PriorityScenarios = []domain.PriorityScenario{{
		ID:            uuid.NewString(),
		ProgramBookID: pb.ID,
		Name:          "scenario 1",
	}}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProgramBook{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProgramBook(ctx, tx, pb); err != nil {
		return domain.ProgramBook{}, err
	}
	if err := e.Events.Append(ctx, tx, "programbook.create", "program_book", pb.ID, opts.ActorID, events.EventPayload{"annual_program_id": pb.AnnualProgramID, "name": pb.Name}); err != nil {
		return domain.ProgramBook{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProgramBook{}, err
	}
	return pb, nil
}

func validProgramBookStatus(status string) bool {
	switch status {
	case domain.ProgramBookStatusNew,
		domain.ProgramBookStatusProgramming,
		domain.ProgramBookStatusSubmittedPreliminary,
		domain.ProgramBookStatusSubmittedFinal,
		domain.ProgramBookStatusValidated:
		return true
	}
	return false
}

// ProjectCreateOptions are parameters for creating a project. Annual
// periods are derived from the start/end year window.
type ProjectCreateOptions struct {
	ID            string
	Name          string
	Status        string
	ExecutorID    string
	ProjectTypeID string
	BoroughID     string
	StartYear     int
	EndYear       int
	ActorID       string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, validationf("name is required")
	}
	if opts.StartYear <= 0 || opts.EndYear < opts.StartYear {
		return domain.Project{}, validationf("invalid year window %d-%d", opts.StartYear, opts.EndYear)
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectStatusPlanned
	}
	if !validProjectStatus(opts.Status) {
		return domain.Project{}, validationf("invalid project status %s", opts.Status)
	}
	if !e.Config.KnownExecutor(opts.ExecutorID) {
		return domain.Project{}, validationf("unknown executor %s", opts.ExecutorID)
	}
	if !e.Config.KnownProjectType(opts.ProjectTypeID) {
		return domain.Project{}, validationf("unknown project type %s", opts.ProjectTypeID)
	}
	if !e.Config.KnownBorough(opts.BoroughID) {
		return domain.Project{}, validationf("unknown borough %s", opts.BoroughID)
	}
	p := domain.Project{
		ID:            newID(opts.ID),
		Name:          opts.Name,
		Status:        opts.Status,
		ExecutorID:    opts.ExecutorID,
		ProjectTypeID: opts.ProjectTypeID,
		BoroughID:     opts.BoroughID,
		StartYear:     opts.StartYear,
		EndYear:       opts.EndYear,
		CreatedAt:     e.nowRFC3339(),
	}
	for year := p.StartYear; year <= p.EndYear; year++ {
		p.AnnualPeriods = append(p.AnnualPeriods, domain.AnnualPeriod{ProjectID: p.ID, Year: year})
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.create", "project", p.ID, opts.ActorID, events.EventPayload{"name": p.Name, "executor_id": p.ExecutorID}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func validProjectStatus(status string) bool {
	switch status {
	case domain.ProjectStatusPlanned,
		domain.ProjectStatusPreliminaryOrdered,
		domain.ProjectStatusProgrammed,
		domain.ProjectStatusPostponed,
		domain.ProjectStatusReplanned,
		domain.ProjectStatusCanceled:
		return true
	}
	return false
}

// InterventionCreateOptions are parameters for creating an intervention.
type InterventionCreateOptions struct {
	ID        string
	Name      string
	ProjectID string
	ProgramID string
	BoroughID string
	ActorID   string
}

func (e Engine) CreateIntervention(ctx context.Context, opts InterventionCreateOptions) (domain.Intervention, error) {
	if opts.ProgramID == "" {
		return domain.Intervention{}, validationf("program_id is required")
	}
	if !e.Config.KnownProgramType(opts.ProgramID) {
		return domain.Intervention{}, validationf("unknown program type %s", opts.ProgramID)
	}
	if opts.BoroughID != "" && !e.Config.KnownBorough(opts.BoroughID) {
		return domain.Intervention{}, validationf("unknown borough %s", opts.BoroughID)
	}
	if opts.ProjectID != "" {
		if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
			return domain.Intervention{}, fmt.Errorf("project %s: %w", opts.ProjectID, err)
		}
	}
	iv := domain.Intervention{
		ID:        newID(opts.ID),
		Name:      opts.Name,
		ProjectID: opts.ProjectID,
		ProgramID: opts.ProgramID,
		BoroughID: opts.BoroughID,
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Intervention{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertIntervention(ctx, tx, iv); err != nil {
		return domain.Intervention{}, err
	}
	if err := e.Events.Append(ctx, tx, "intervention.create", "intervention", iv.ID, opts.ActorID, events.EventPayload{"program_id": iv.ProgramID}); err != nil {
		return domain.Intervention{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Intervention{}, err
	}
	return iv, nil
}

// AssignIntervention links an intervention to a project.
func (e Engine) AssignIntervention(ctx context.Context, interventionID, projectID, actorID string) error {
	if _, err := e.Repo.GetIntervention(ctx, interventionID); err != nil {
		return fmt.Errorf("intervention %s: %w", interventionID, err)
	}
	if projectID != "" {
		if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
			return fmt.Errorf("project %s: %w", projectID, err)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.SetInterventionProject(ctx, tx, interventionID, projectID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "intervention.assign", "intervention", interventionID, actorID, events.EventPayload{"project_id": projectID}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetAnnualProgramStatus moves an annual program through its lifecycle.
func (e Engine) SetAnnualProgramStatus(ctx context.Context, id, status, actorID string) error {
	switch status {
	case domain.AnnualProgramStatusNew, domain.AnnualProgramStatusProgramming, domain.AnnualProgramStatusSubmitted:
	default:
		return validationf("invalid annual program status %s", status)
	}
	if err := e.Repo.UpdateAnnualProgramStatus(ctx, id, status); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, "annualprogram.status", "annual_program", id, actorID, events.EventPayload{"status": status}); err != nil {
		return err
	}
	return tx.Commit()
}

// SetProgramBookStatus moves a program book through its lifecycle.
func (e Engine) SetProgramBookStatus(ctx context.Context, id, status, actorID string) error {
	if !validProgramBookStatus(status) {
		return validationf("invalid program book status %s", status)
	}
	if _, err := e.Repo.GetProgramBook(ctx, id); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE program_books SET status=? WHERE id=?`, status, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "programbook.status", "program_book", id, actorID, events.EventPayload{"status": status}); err != nil {
		return err
	}
	return tx.Commit()
}
