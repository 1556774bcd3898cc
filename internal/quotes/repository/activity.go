package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Activity is one delivered quote lifecycle event.
type Activity struct {
	ID             int64
	TaskID         string
	QuoteID        int64
	CompanyID      int64
	EventType      string
	DocumentNumber *int64
	Status         *string
	Total          decimal.NullDecimal
	UserID         *int64
	RequestID      *string
	OccurredAt     time.Time
	RecordedAt     time.Time
}

const insertActivityQuery = `
	INSERT INTO quote_activity (
		task_id, quote_id, company_id, event_type, document_number,
		status, total, user_id, request_id, occurred_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (task_id) DO NOTHING`

const listActivityQuery = `
	SELECT id, task_id, quote_id, company_id, event_type, document_number,
		status, total, user_id, request_id, occurred_at, recorded_at
	FROM quote_activity
	WHERE quote_id = $1 AND company_id = $2
	ORDER BY occurred_at, id`

// RecordActivity stores a lifecycle event. It reports false when the task
// was already recorded by an earlier delivery.
func (r *Repository) RecordActivity(ctx context.Context, a Activity) (bool, error) {
	result, err := r.pool.Exec(ctx, insertActivityQuery,
		a.TaskID, a.QuoteID, a.CompanyID, a.EventType, a.DocumentNumber,
		a.Status, a.Total, a.UserID, a.RequestID, a.OccurredAt,
	)
	if err != nil {
		return false, mapWriteError("failed to record quote activity", err)
	}
	return result.RowsAffected() == 1, nil
}

// ListActivity returns the recorded history of a quote, oldest first. Soft
// deleted quotes keep their history.
func (r *Repository) ListActivity(ctx context.Context, quoteID, companyID int64) ([]Activity, error) {
	rows, err := r.pool.Query(ctx, listActivityQuery, quoteID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quote activity: %w", err)
	}
	defer rows.Close()

	result := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(
			&a.ID, &a.TaskID, &a.QuoteID, &a.CompanyID, &a.EventType, &a.DocumentNumber,
			&a.Status, &a.Total, &a.UserID, &a.RequestID, &a.OccurredAt, &a.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quote activity: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quote activity: %w", err)
	}
	return result, nil
}

// RecordActivity mirrors Repository.RecordActivity.
func (m *Memory) RecordActivity(_ context.Context, a Activity) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.activityTasks[a.TaskID]; seen {
		return false, nil
	}
	m.lastActivityID++
	a.ID = m.lastActivityID
	a.RecordedAt = m.now().UTC()
	m.activityTasks[a.TaskID] = struct{}{}
	m.activity = append(m.activity, a)
	return true, nil
}

// ListActivity mirrors Repository.ListActivity.
func (m *Memory) ListActivity(_ context.Context, quoteID, companyID int64) ([]Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Activity, 0)
	for _, a := range m.activity {
		if a.QuoteID == quoteID && a.CompanyID == companyID {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].OccurredAt.Equal(result[j].OccurredAt) {
			return result[i].OccurredAt.Before(result[j].OccurredAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
