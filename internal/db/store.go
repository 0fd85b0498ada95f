package db

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glasswallet/router/internal/models"
)

//go:embed schema.sql
var schema string

var (
	leadColumnNames = []string{
		"id", "created_at", "name", "email", "phone", "source", "device_type",
		"credit_score", "income", "previous_applications", "tags", "preferred_channel", "priority", "status",
	}
	leadColumns = strings.Join(leadColumnNames, ", ")
	insertLead  = `INSERT INTO leads (` + leadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertLeads adds leads in one transaction. Leads whose ID already exists
// are skipped; the count covers inserted rows only.
func (s *Store) InsertLeads(ctx context.Context, leads []models.Lead) (int64, error) {
	batch := &pgx.Batch{}
	for _, l := range leads {
		status := l.Status
		if status == "" {
			status = models.LeadStatusNew
		}
		createdAt := l.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		tags := l.Tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(insertLead,
			l.ID, createdAt, l.Name, l.Email, l.Phone, l.Source, l.DeviceType,
			l.CreditScore, l.Income, l.PreviousApplications, tags, l.PreferredChannel, string(l.Priority), status,
		)
	}
	if batch.Len() == 0 {
		return 0, nil
	}

	var inserted int64
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for range leads {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return err
			}
			inserted += tag.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) PendingLeads(ctx context.Context) ([]models.Lead, error) {
	return s.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads WHERE status = $1 ORDER BY created_at ASC, id ASC`, models.LeadStatusNew)
}

func (s *Store) ListLeads(ctx context.Context, status string, limit, offset int) ([]models.Lead, error) {
	limit, offset = clampPage(limit, offset)

	query := `SELECT ` + leadColumns + ` FROM leads`
	var args []any
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	return s.queryLeads(ctx, query, args...)
}

func (s *Store) GetLead(ctx context.Context, id string) (models.Lead, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err != nil {
		return models.Lead{}, err
	}
	return l, nil
}

// SaveAssignment replaces the lead's assignment and moves the lead to the
// matching status in one transaction.
func (s *Store) SaveAssignment(ctx context.Context, a models.Assignment) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO assignments (id, lead_id, agent_id, status, urgency, confidence, reason_code, reason_text, decision, assigned_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (lead_id) DO UPDATE SET
				id = EXCLUDED.id,
				agent_id = EXCLUDED.agent_id,
				status = EXCLUDED.status,
				urgency = EXCLUDED.urgency,
				confidence = EXCLUDED.confidence,
				reason_code = EXCLUDED.reason_code,
				reason_text = EXCLUDED.reason_text,
				decision = EXCLUDED.decision,
				assigned_at = EXCLUDED.assigned_at`,
			a.ID, a.LeadID, a.AgentID, a.Status, string(a.Urgency), a.Confidence, a.ReasonCode, a.ReasonText, a.Decision, a.AssignedAt)
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE leads SET status = $1 WHERE id = $2`, models.LeadStatusFor(a.Status), a.LeadID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

func (s *Store) GetAssignment(ctx context.Context, leadID string) (models.Assignment, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, lead_id, agent_id, status, urgency, confidence, reason_code, reason_text, decision, assigned_at
		FROM assignments WHERE lead_id = $1`, leadID)
	var (
		a       models.Assignment
		urgency string
	)
	if err := row.Scan(&a.ID, &a.LeadID, &a.AgentID, &a.Status, &urgency, &a.Confidence, &a.ReasonCode, &a.ReasonText, &a.Decision, &a.AssignedAt); err != nil {
		return models.Assignment{}, err
	}
	a.Urgency = models.Urgency(urgency)
	return a, nil
}

func (s *Store) CreateRun(ctx context.Context, status string) (string, error) {
	id := uuid.NewString()
	_, err := s.Pool.Exec(ctx, `INSERT INTO runs (id, started_at, status) VALUES ($1, $2, $3)`, id, time.Now().UTC(), status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) FinishRun(ctx context.Context, id string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE runs SET finished_at = $1, status = $2, summary = $3 WHERE id = $4`, time.Now().UTC(), status, summary, id)
	return err
}

func (s *Store) LatestRun(ctx context.Context) (models.Run, error) {
	row := s.Pool.QueryRow(ctx, `SELECT id, started_at, finished_at, status, summary FROM runs ORDER BY started_at DESC LIMIT 1`)
	var (
		r          models.Run
		finishedAt *time.Time
	)
	if err := row.Scan(&r.ID, &r.StartedAt, &finishedAt, &r.Status, &r.Summary); err != nil {
		return models.Run{}, err
	}
	if finishedAt != nil {
		r.FinishedAt = *finishedAt
	}
	return r, nil
}

func (s *Store) queryLeads(ctx context.Context, query string, args ...any) ([]models.Lead, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLead(row pgx.Row) (models.Lead, error) {
	var (
		l        models.Lead
		priority string
	)
	err := row.Scan(&l.ID, &l.CreatedAt, &l.Name, &l.Email, &l.Phone, &l.Source, &l.DeviceType,
		&l.CreditScore, &l.Income, &l.PreviousApplications, &l.Tags, &l.PreferredChannel, &priority, &l.Status)
	if err != nil {
		return models.Lead{}, err
	}
	l.Priority = models.Urgency(priority)
	return l, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
