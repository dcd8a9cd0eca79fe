package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

type UserRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert records the user on first contact and refreshes the profile fields
// afterwards. created_at is kept from the first insert.
func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, username, full_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			username = VALUES(username),
			full_name = VALUES(full_name),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.FullName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return err
}
