package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

var (
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrInvoiceMessageAlreadySet  = errors.New("invoice message already attached")
	ErrProviderPaymentAlreadySet = errors.New("provider payment already attached")
	ErrProviderPaymentConflict   = errors.New("provider payment id belongs to another payment")
)

const paymentColumns = `
	id, user_id, course_id, amount, currency, status, method,
	invoice_message_id, provider_payment_id,
	created_at, updated_at, resolved_at
`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			user_id, course_id, amount, currency, status, method,
			invoice_message_id, provider_payment_id,
			created_at, updated_at, resolved_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.UserID,
		payment.CourseID,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.Method,
		nullableIntValue(payment.InvoiceMessageID),
		nullableStringValue(payment.ProviderPaymentID),
		payment.CreatedAt,
		payment.UpdatedAt,
		nullableTimeValue(payment.ResolvedAt),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

// AttachInvoiceMessage records the chat message presenting the payment UI.
// The column is written at most once.
func (r *PaymentRepository) AttachInvoiceMessage(ctx context.Context, id uint64, messageID int, now time.Time) error {
	query := `
		UPDATE payments SET invoice_message_id = ?, updated_at = ?
		WHERE id = ? AND invoice_message_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, int64(messageID), now, id)
	if err != nil {
		return err
	}
	return r.checkOneTimeWrite(ctx, id, result, ErrInvoiceMessageAlreadySet)
}

func (r *PaymentRepository) AttachProviderPayment(ctx context.Context, id uint64, providerPaymentID string, now time.Time) error {
	query := `
		UPDATE payments SET provider_payment_id = ?, updated_at = ?
		WHERE id = ? AND provider_payment_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, providerPaymentID, now, id)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrProviderPaymentConflict
		}
		return err
	}
	return r.checkOneTimeWrite(ctx, id, result, ErrProviderPaymentAlreadySet)
}

// Transition moves a payment from one status to another in a single
// conditional write. It reports true only for the caller whose update
// observed the row in the from status.
func (r *PaymentRepository) Transition(ctx context.Context, id uint64, from, to string, now time.Time) (bool, error) {
	query := `
		UPDATE payments SET status = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, to, now, now, id, from)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_payment_id = ? LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, providerPaymentID), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

// ListStalePending returns pending payments created at or before cutoff.
func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND created_at <= ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	return r.list(ctx, query, entity.PaymentStatusPending, cutoff, limit)
}

// ListForReconcile returns pending gateway payments not touched since before.
func (r *PaymentRepository) ListForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND provider_payment_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	return r.list(ctx, query, entity.PaymentStatusPending, before, limit)
}

func (r *PaymentRepository) ListPurchasesByUser(ctx context.Context, userID int64, limit int32) ([]*entity.PurchaseRecord, error) {
	query := `
		SELECT p.id, c.title, p.amount, p.currency, p.status, p.created_at
		FROM payments p
		JOIN courses c ON p.course_id = c.id
		WHERE p.user_id = ?
		ORDER BY p.created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*entity.PurchaseRecord, 0)
	for rows.Next() {
		item := &entity.PurchaseRecord{}
		if err := rows.Scan(&item.PaymentID, &item.CourseTitle, &item.Amount, &item.Currency, &item.Status, &item.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *PaymentRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item, err := scanPaymentFromRows(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) checkOneTimeWrite(ctx context.Context, id uint64, result sql.Result, alreadySet error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM payments WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrPaymentNotFound
	}
	if err != nil {
		return err
	}
	return alreadySet
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var invoiceMessageID sql.NullInt64
	var providerPaymentID sql.NullString
	var resolvedAt sql.NullTime

	err := scan.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.CourseID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Method,
		&invoiceMessageID,
		&providerPaymentID,
		&payment.CreatedAt,
		&payment.UpdatedAt,
		&resolvedAt,
	)
	if err != nil {
		return err
	}

	payment.InvoiceMessageID = intPtrFromNull(invoiceMessageID)
	payment.ProviderPaymentID = stringPtrFromNull(providerPaymentID)
	payment.ResolvedAt = timePtrFromNull(resolvedAt)

	return nil
}

func scanPaymentFromRows(rows *sql.Rows) (*entity.Payment, error) {
	item := &entity.Payment{}
	if err := scanPayment(rows, item); err != nil {
		return nil, err
	}
	return item, nil
}
