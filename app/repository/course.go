package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

const courseColumns = `id, title, short_description, full_description, materials_link, price`

type CourseRepository struct {
	db DBTX
}

func NewCourseRepository(db DBTX) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint64) (*entity.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = ?`

	course := &entity.Course{}
	err := scanCourse(r.db.QueryRowContext(ctx, query, id), course)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return course, nil
}

// List returns the catalog in insertion order.
func (r *CourseRepository) List(ctx context.Context) ([]*entity.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Course, 0)
	for rows.Next() {
		item := &entity.Course{}
		if err := scanCourse(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanCourse(scan rowScanner, course *entity.Course) error {
	var fullDescription sql.NullString
	if err := scan.Scan(
		&course.ID,
		&course.Title,
		&course.ShortDescription,
		&fullDescription,
		&course.MaterialsLink,
		&course.Price,
	); err != nil {
		return err
	}
	course.FullDescription = fullDescription.String
	return nil
}
