package repo

import (
	"context"
	"database/sql"
	"fmt"

	"capworks/internal/domain"
)

func (r Repo) InsertProgramBook(ctx context.Context, tx *sql.Tx, pb domain.ProgramBook) error {
	projectTypes, err := marshalCodes(pb.ProjectTypes)
	if err != nil {
		return err
	}
	programTypes, err := marshalCodes(pb.ProgramTypes)
	if err != nil {
		return err
	}
	boroughs, err := marshalCodes(pb.BoroughIDs)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO program_books(id,annual_program_id,name,status,in_charge,project_types_json,program_types_json,borough_ids_json,is_automatic_loading_in_progress,loading_started_at,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		pb.ID, pb.AnnualProgramID, pb.Name, pb.Status, nullable(pb.InCharge), projectTypes, programTypes, boroughs,
		boolToInt(pb.IsAutomaticLoadingInProgress), nullable(pb.LoadingStartedAt), pb.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert program book: %w", err)
	}
	for _, sc := range pb.PriorityScenarios {
		if err := r.InsertPriorityScenario(ctx, tx, sc); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) InsertPriorityScenario(ctx context.Context, tx *sql.Tx, sc domain.PriorityScenario) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO priority_scenarios(id,program_book_id,name,is_outdated,position)
VALUES (?,?,?,?,(SELECT COUNT(*) FROM priority_scenarios WHERE program_book_id=?))`,
		sc.ID, sc.ProgramBookID, sc.Name, boolToInt(sc.IsOutdated), sc.ProgramBookID)
	if err != nil {
		return fmt.Errorf("insert priority scenario: %w", err)
	}
	for _, op := range sc.OrderedProjects {
		if err := r.AppendOrderedProject(ctx, tx, sc.ID, op.ProjectID, op.Rank); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetProgramBook(ctx context.Context, id string) (domain.ProgramBook, error) {
	return r.GetProgramBookTx(ctx, nil, id)
}

func (r Repo) GetProgramBookTx(ctx context.Context, tx *sql.Tx, id string) (domain.ProgramBook, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT id,annual_program_id,name,status,COALESCE(in_charge,''),project_types_json,program_types_json,borough_ids_json,is_automatic_loading_in_progress,COALESCE(loading_started_at,''),created_at
FROM program_books WHERE id=?`, id)
	pb, err := scanProgramBook(row)
	if err != nil {
		return pb, err
	}
	pb.PriorityScenarios, err = r.listScenarios(ctx, tx, pb.ID)
	return pb, err
}

func scanProgramBook(row *sql.Row) (domain.ProgramBook, error) {
	var pb domain.ProgramBook
	var projectTypes, programTypes, boroughs string
	var inProgress int
	err := row.Scan(&pb.ID, &pb.AnnualProgramID, &pb.Name, &pb.Status, &pb.InCharge,
		&projectTypes, &programTypes, &boroughs, &inProgress, &pb.LoadingStartedAt, &pb.CreatedAt)
	if err == sql.ErrNoRows {
		return pb, ErrNotFound
	}
	if err != nil {
		return pb, err
	}
	pb.IsAutomaticLoadingInProgress = inProgress != 0
	if pb.ProjectTypes, err = unmarshalCodes(projectTypes); err != nil {
		return pb, err
	}
	if pb.ProgramTypes, err = unmarshalCodes(programTypes); err != nil {
		return pb, err
	}
	pb.BoroughIDs, err = unmarshalCodes(boroughs)
	return pb, err
}

func (r Repo) listScenarios(ctx context.Context, tx *sql.Tx, programBookID string) ([]domain.PriorityScenario, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,program_book_id,name,is_outdated FROM priority_scenarios WHERE program_book_id=? ORDER BY position`, programBookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scenarios []domain.PriorityScenario
	for rows.Next() {
		var sc domain.PriorityScenario
		var outdated int
		if err := rows.Scan(&sc.ID, &sc.ProgramBookID, &sc.Name, &outdated); err != nil {
			return nil, err
		}
		sc.IsOutdated = outdated != 0
		scenarios = append(scenarios, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range scenarios {
		scenarios[i].OrderedProjects, err = r.listOrderedProjects(ctx, tx, scenarios[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return scenarios, nil
}

func (r Repo) listOrderedProjects(ctx context.Context, tx *sql.Tx, scenarioID string) ([]domain.OrderedProject, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT project_id,rank FROM ordered_projects WHERE scenario_id=? ORDER BY rank`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OrderedProject
	for rows.Next() {
		var op domain.OrderedProject
		if err := rows.Scan(&op.ProjectID, &op.Rank); err != nil {
			return nil, err
		}
		res = append(res, op)
	}
	return res, rows.Err()
}

// ListProgramBooks returns books, optionally filtered by annual program.
// Scenarios are loaded with each book; list handlers trim to summaries.
func (r Repo) ListProgramBooks(ctx context.Context, annualProgramID string) ([]domain.ProgramBook, error) {
	query := `SELECT id FROM program_books`
	var args []any
	if annualProgramID != "" {
		query += ` WHERE annual_program_id=?`
		args = append(args, annualProgramID)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var res []domain.ProgramBook
	for _, id := range ids {
		pb, err := r.GetProgramBook(ctx, id)
		if err != nil {
			return nil, err
		}
		res = append(res, pb)
	}
	return res, nil
}

// TryAcquireLoading flips the persisted loading flag, but only when it is
// currently clear. Returns false without error when another run holds it.
func (r Repo) TryAcquireLoading(ctx context.Context, programBookID, startedAt string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE program_books SET is_automatic_loading_in_progress=1, loading_started_at=? WHERE id=? AND is_automatic_loading_in_progress=0`,
		startedAt, programBookID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ReleaseLoading clears the flag unconditionally.
func (r Repo) ReleaseLoading(ctx context.Context, programBookID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE program_books SET is_automatic_loading_in_progress=0, loading_started_at=NULL WHERE id=?`, programBookID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AppendOrderedProject(ctx context.Context, tx *sql.Tx, scenarioID, projectID string, rank int) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO ordered_projects(scenario_id,project_id,rank) VALUES (?,?,?)`,
		scenarioID, projectID, rank)
	if err != nil {
		return fmt.Errorf("append ordered project: %w", err)
	}
	return nil
}

func (r Repo) MarkScenarioOutdated(ctx context.Context, tx *sql.Tx, scenarioID string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE priority_scenarios SET is_outdated=1 WHERE id=?`, scenarioID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
