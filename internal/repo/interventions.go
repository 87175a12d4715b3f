package repo

import (
	"context"
	"database/sql"
	"fmt"

	"capworks/internal/domain"
)

func (r Repo) InsertIntervention(ctx context.Context, tx *sql.Tx, iv domain.Intervention) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO interventions(id,name,project_id,program_id,borough_id,created_at) VALUES (?,?,?,?,?,?)`,
		iv.ID, nullable(iv.Name), nullable(iv.ProjectID), iv.ProgramID, nullable(iv.BoroughID), iv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert intervention: %w", err)
	}
	return nil
}

func (r Repo) GetIntervention(ctx context.Context, id string) (domain.Intervention, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,COALESCE(name,''),COALESCE(project_id,''),program_id,COALESCE(borough_id,''),created_at FROM interventions WHERE id=?`, id)
	var iv domain.Intervention
	err := row.Scan(&iv.ID, &iv.Name, &iv.ProjectID, &iv.ProgramID, &iv.BoroughID, &iv.CreatedAt)
	if err == sql.ErrNoRows {
		return iv, ErrNotFound
	}
	return iv, err
}

func (r Repo) ListInterventionsByProject(ctx context.Context, projectID string) ([]domain.Intervention, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(name,''),COALESCE(project_id,''),program_id,COALESCE(borough_id,''),created_at FROM interventions WHERE project_id=? ORDER BY created_at, id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInterventions(rows)
}

// ListInterventionsForProjects returns linked interventions keyed by project
// id, one query for the whole candidate batch.
func (r Repo) ListInterventionsForProjects(ctx context.Context, projectIDs []string) (map[string][]domain.Intervention, error) {
	res := make(map[string][]domain.Intervention, len(projectIDs))
	if len(projectIDs) == 0 {
		return res, nil
	}
	placeholders := ""
	args := make([]any, 0, len(projectIDs))
	for i, id := range projectIDs {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, id)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(name,''),COALESCE(project_id,''),program_id,COALESCE(borough_id,''),created_at FROM interventions WHERE project_id IN (`+placeholders+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	all, err := scanInterventions(rows)
	if err != nil {
		return nil, err
	}
	for _, iv := range all {
		res[iv.ProjectID] = append(res[iv.ProjectID], iv)
	}
	return res, nil
}

func (r Repo) SetInterventionProject(ctx context.Context, tx *sql.Tx, interventionID, projectID string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE interventions SET project_id=? WHERE id=?`, nullable(projectID), interventionID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInterventions(rows *sql.Rows) ([]domain.Intervention, error) {
	var res []domain.Intervention
	for rows.Next() {
		var iv domain.Intervention
		if err := rows.Scan(&iv.ID, &iv.Name, &iv.ProjectID, &iv.ProgramID, &iv.BoroughID, &iv.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, iv)
	}
	return res, rows.Err()
}
