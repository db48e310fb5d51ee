// Package activity records who did what through the API: computations,
// batch runs and voids, per employer.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"payengine/internal/platform/querier"
)

const (
	ActionPaycheckComputed = "paycheck.computed"
	ActionBatchComputed    = "paycheck.batch_computed"
	ActionPaycheckVoided   = "paycheck.voided"
)

var Actions = []string{ActionPaycheckComputed, ActionBatchComputed, ActionPaycheckVoided}

const (
	EntityPaycheck = "paycheck"
	EntityPayRun   = "pay_run"
)

type Event struct {
	ID         int64           `json:"id"`
	EmployerID string          `json:"employerId"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Detail     json.RawMessage `json:"detail,omitempty"`
}

// Filter narrows a listing. From and To are inclusive calendar days; zero
// values are open ends.
type Filter struct {
	Action    string
	ActorUser string
	From      time.Time
	To        time.Time
}

type Log struct {
	db querier.Querier
}

func New(db querier.Querier) *Log {
	return &Log{db: db}
}

// Record stores one event. detail is marshalled as JSON when non-nil. A nil
// Log records nothing.
func (l *Log) Record(ctx context.Context, evt Event, detail any) error {
	if l == nil || l.db == nil {
		return nil
	}
	var detailJSON []byte
	if detail != nil {
		payload, err := json.Marshal(detail)
		if err != nil {
			return err
		}
		detailJSON = payload
	}

	_, err := l.db.Exec(ctx, `
    INSERT INTO activity_events (employer_id, actor_user_id, action, entity_type, entity_id, request_id, ip, detail_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, evt.EmployerID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.IP, detailJSON)
	return err
}

func (l *Log) Count(ctx context.Context, employerID string, filter Filter) (int, error) {
	query, args := buildQuery("SELECT COUNT(1)", employerID, filter)
	var total int
	if err := l.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns events newest first.
func (l *Log) List(ctx context.Context, employerID string, filter Filter, limit, offset int) ([]Event, error) {
	query, args := buildQuery(
		"SELECT id, employer_id, actor_user_id, action, entity_type, entity_id, request_id, ip, created_at, detail_json",
		employerID, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		if err := rows.Scan(&evt.ID, &evt.EmployerID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID,
			&evt.RequestID, &evt.IP, &evt.CreatedAt, &evt.Detail); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildQuery(prefix, employerID string, filter Filter) (string, []any) {
	query := prefix + " FROM activity_events WHERE employer_id = $1"
	args := []any{employerID}
	if filter.Action != "" {
		query += fmt.Sprintf(" AND action = $%d", len(args)+1)
		args = append(args, filter.Action)
	}
	if filter.ActorUser != "" {
		query += fmt.Sprintf(" AND actor_user_id = $%d", len(args)+1)
		args = append(args, filter.ActorUser)
	}
	if !filter.From.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		query += fmt.Sprintf(" AND created_at < $%d", len(args)+1)
		args = append(args, filter.To.AddDate(0, 0, 1))
	}
	return query, args
}
