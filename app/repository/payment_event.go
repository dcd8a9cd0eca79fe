package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

type PaymentEventRepository struct {
	db DBTX
}

func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

func (r *PaymentEventRepository) Create(ctx context.Context, event *entity.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (
			payment_id, event_type, source, old_status, new_status, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.PaymentID,
		event.EventType,
		event.Source,
		nullableStringValue(event.OldStatus),
		event.NewStatus,
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}

// ListByPayment returns the audit trail of a payment, oldest first.
func (r *PaymentEventRepository) ListByPayment(ctx context.Context, paymentID uint64, limit int32) ([]*entity.PaymentEvent, error) {
	query := `
		SELECT id, payment_id, event_type, source, old_status, new_status, payload_json, created_at
		FROM payment_events
		WHERE payment_id = ?
		ORDER BY id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, paymentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.PaymentEvent, 0)
	for rows.Next() {
		var (
			item      entity.PaymentEvent
			oldStatus sql.NullString
			payload   sql.NullString
		)
		if err := rows.Scan(
			&item.ID,
			&item.PaymentID,
			&item.EventType,
			&item.Source,
			&oldStatus,
			&item.NewStatus,
			&payload,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.OldStatus = stringPtrFromNull(oldStatus)
		item.PayloadJSON = stringPtrFromNull(payload)
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *PaymentEventRepository) ExistsByType(ctx context.Context, paymentID uint64, eventType string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM payment_events WHERE payment_id = ? AND event_type = ? LIMIT 1`,
		paymentID, eventType,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
