package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"capworks/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func marshalCodes(codes []string) (string, error) {
	if codes == nil {
		codes = []string{}
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return "", fmt.Errorf("marshal codes: %w", err)
	}
	return string(b), nil
}

func unmarshalCodes(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(raw), &codes); err != nil {
		return nil, fmt.Errorf("unmarshal codes: %w", err)
	}
	if len(codes) == 0 {
		return nil, nil
	}
	return codes, nil
}

// querier lets repo methods run against either the pool or a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

// Annual programs

func (r Repo) InsertAnnualProgram(ctx context.Context, tx *sql.Tx, ap domain.AnnualProgram) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO annual_programs(id,year,executor_id,status,description,created_at) VALUES (?,?,?,?,?,?)`,
		ap.ID, ap.Year, ap.ExecutorID, ap.Status, nullable(ap.Description), ap.CreatedAt)
	return err
}

func (r Repo) GetAnnualProgram(ctx context.Context, id string) (domain.AnnualProgram, error) {
	return r.GetAnnualProgramTx(ctx, nil, id)
}

func (r Repo) GetAnnualProgramTx(ctx context.Context, tx *sql.Tx, id string) (domain.AnnualProgram, error) {
	row := r.q(tx).QueryRowContext(ctx, `SELECT id,year,executor_id,status,COALESCE(description,''),created_at FROM annual_programs WHERE id=?`, id)
	var ap domain.AnnualProgram
	err := row.Scan(&ap.ID, &ap.Year, &ap.ExecutorID, &ap.Status, &ap.Description, &ap.CreatedAt)
	if err == sql.ErrNoRows {
		return ap, ErrNotFound
	}
	return ap, err
}

func (r Repo) ListAnnualPrograms(ctx context.Context) ([]domain.AnnualProgram, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,year,executor_id,status,COALESCE(description,''),created_at FROM annual_programs ORDER BY year DESC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AnnualProgram
	for rows.Next() {
		var ap domain.AnnualProgram
		if err := rows.Scan(&ap.ID, &ap.Year, &ap.ExecutorID, &ap.Status, &ap.Description, &ap.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, ap)
	}
	return res, rows.Err()
}

func (r Repo) UpdateAnnualProgramStatus(ctx context.Context, id, status string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE annual_programs SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Events

func (r Repo) ListEvents(ctx context.Context, entityID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
	var args []any
	if entityID != "" {
		query += ` WHERE entity_id=?`
		args = append(args, entityID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
