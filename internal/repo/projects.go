package repo

import (
	"context"
	"database/sql"
	"fmt"

	"capworks/internal/domain"
)

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(id,name,status,executor_id,project_type_id,borough_id,start_year,end_year,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.Status, p.ExecutorID, p.ProjectTypeID, p.BoroughID, p.StartYear, p.EndYear, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	for _, ap := range p.AnnualPeriods {
		if err := r.UpsertAnnualPeriod(ctx, tx, ap); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) UpsertAnnualPeriod(ctx context.Context, tx *sql.Tx, ap domain.AnnualPeriod) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO annual_periods(project_id,year,program_book_id) VALUES (?,?,?)
ON CONFLICT(project_id,year) DO UPDATE SET program_book_id=excluded.program_book_id`,
		ap.ProjectID, ap.Year, nullable(ap.ProgramBookID))
	if err != nil {
		return fmt.Errorf("upsert annual period: %w", err)
	}
	return nil
}

// SetAnnualPeriodProgramBook stamps the project's period for the year with
// the program book id.
func (r Repo) SetAnnualPeriodProgramBook(ctx context.Context, tx *sql.Tx, projectID string, year int, programBookID string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE annual_periods SET program_book_id=? WHERE project_id=? AND year=?`,
		nullable(programBookID), projectID, year)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return r.GetProjectTx(ctx, nil, id)
}

func (r Repo) GetProjectTx(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT id,name,status,executor_id,project_type_id,borough_id,start_year,end_year,created_at FROM projects WHERE id=?`, id)
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.Status, &p.ExecutorID, &p.ProjectTypeID, &p.BoroughID, &p.StartYear, &p.EndYear, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.AnnualPeriods, err = r.listAnnualPeriods(ctx, tx, p.ID)
	return p, err
}

func (r Repo) listAnnualPeriods(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.AnnualPeriod, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT project_id,year,COALESCE(program_book_id,'') FROM annual_periods WHERE project_id=? ORDER BY year`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AnnualPeriod
	for rows.Next() {
		var ap domain.AnnualPeriod
		if err := rows.Scan(&ap.ProjectID, &ap.Year, &ap.ProgramBookID); err != nil {
			return nil, err
		}
		res = append(res, ap)
	}
	return res, rows.Err()
}

// ProjectFilter narrows project scans. Zero values mean no filtering on that
// dimension.
type ProjectFilter struct {
	ExecutorID     string
	Status         string
	ExcludeStatus  string
	YearOverlap    int
	BoroughID      string
	ProjectTypeIDs []string
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilter) ([]domain.Project, error) {
	query := `SELECT id,name,status,executor_id,project_type_id,borough_id,start_year,end_year,created_at FROM projects`
	var (
		clauses []string
		args    []any
	)
	if f.ExecutorID != "" {
		clauses = append(clauses, `executor_id=?`)
		args = append(args, f.ExecutorID)
	}
	if f.Status != "" {
		clauses = append(clauses, `status=?`)
		args = append(args, f.Status)
	}
	if f.ExcludeStatus != "" {
		clauses = append(clauses, `status<>?`)
		args = append(args, f.ExcludeStatus)
	}
	if f.YearOverlap != 0 {
		clauses = append(clauses, `start_year<=? AND end_year>=?`)
		args = append(args, f.YearOverlap, f.YearOverlap)
	}
	if f.BoroughID != "" {
		clauses = append(clauses, `borough_id=?`)
		args = append(args, f.BoroughID)
	}
	if len(f.ProjectTypeIDs) > 0 {
		placeholders := ""
		for i, id := range f.ProjectTypeIDs {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, id)
		}
		clauses = append(clauses, `project_type_id IN (`+placeholders+`)`)
	}
	for i, c := range clauses {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Status, &p.ExecutorID, &p.ProjectTypeID, &p.BoroughID, &p.StartYear, &p.EndYear, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].AnnualPeriods, err = r.listAnnualPeriods(ctx, nil, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
