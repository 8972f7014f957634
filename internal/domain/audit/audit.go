// Package audit keeps a trail of mutating operations: who changed what and
// the values before and after.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"kpitracker/internal/platform/db"
	"kpitracker/internal/platform/requestctx"
)

const anonymousActor = "anonymous"

type Event struct {
	ID         int64           `json:"id"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  string          `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
}

type Service struct {
	DB  *db.Manager
	now func() time.Time
}

func New(m *db.Manager) *Service {
	return &Service{DB: m, now: time.Now}
}

// Record stores one event. The actor is the admin session on ctx, or
// anonymous for open operations such as entry creation.
func (s *Service) Record(ctx context.Context, action, entityType, entityID, ip string, before, after any) error {
	beforeJSON, err := marshalOptional(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOptional(after)
	if err != nil {
		return err
	}
	actor := anonymousActor
	if session, ok := requestctx.GetAdmin(ctx); ok {
		actor = session.Subject + ":" + session.ID
	}

	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (actor, action, entity_type, entity_id, before_json, after_json, request_id, ip, created_at)
    VALUES (?,?,?,?,?,?,?,?,?)
  `, actor, action, entityType, entityID, beforeJSON, afterJSON, requestctx.GetRequestID(ctx), ip, db.Timestamp(s.now()))
	return err
}

// Prune deletes events recorded before cutoff and reports how many went.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.DB.Exec(ctx, "DELETE FROM audit_events WHERE created_at < ?", db.Timestamp(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RetentionJob returns a job body that prunes events older than keep.
func (s *Service) RetentionJob(keep time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Prune(ctx, s.now().Add(-keep))
		return err
	}
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := buildFilter(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns events newest first. A non-positive limit returns every match.
func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	cols := "id, actor, action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		cols += ", before_json, after_json"
	}
	where, args := buildFilter(filter)
	query := "SELECT " + cols + " FROM audit_events WHERE " + where + " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.Actor, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		var before, after *string
		if includeDetails {
			dest = append(dest, &before, &after)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if before != nil {
			evt.Before = json.RawMessage(*before)
		}
		if after != nil {
			evt.After = json.RawMessage(*after)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildFilter(filter Filter) (string, []any) {
	where := "1=1"
	var args []any
	if filter.Action != "" {
		where += " AND action = ?"
		args = append(args, filter.Action)
	}
	if filter.EntityType != "" {
		where += " AND entity_type = ?"
		args = append(args, filter.EntityType)
	}
	return where, args
}

func marshalOptional(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := string(payload)
	return &out, nil
}
