package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

type EntitlementRepository struct {
	db DBTX
}

func NewEntitlementRepository(db DBTX) *EntitlementRepository {
	return &EntitlementRepository{db: db}
}

// Grant inserts the (user, course) pair unless it already exists and
// reports whether a new row was written.
func (r *EntitlementRepository) Grant(ctx context.Context, item *entity.Entitlement) (bool, error) {
	query := `
		INSERT IGNORE INTO user_courses (user_id, course_id, payment_id, created_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		item.UserID,
		item.CourseID,
		nullableUint64Value(item.PaymentID),
		item.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *EntitlementRepository) HasAccess(ctx context.Context, userID int64, courseID uint64) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM user_courses WHERE user_id = ? AND course_id = ?`,
		userID, courseID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListByUser returns the courses the user owns, newest first.
func (r *EntitlementRepository) ListByUser(ctx context.Context, userID int64) ([]*entity.OwnedCourse, error) {
	query := `
		SELECT c.id, c.title, c.materials_link, uc.created_at
		FROM user_courses uc
		INNER JOIN courses c ON c.id = uc.course_id
		WHERE uc.user_id = ?
		ORDER BY uc.created_at DESC, c.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.OwnedCourse, 0)
	for rows.Next() {
		item := &entity.OwnedCourse{}
		if err := rows.Scan(&item.CourseID, &item.Title, &item.MaterialsLink, &item.GrantedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
