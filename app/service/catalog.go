package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/factory"
	"github.com/vibast-solutions/ms-go-course-shop/config"
)

type catalogCourseRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Course, error)
	List(ctx context.Context) ([]*entity.Course, error)
}

type ownedCourseRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]*entity.OwnedCourse, error)
}

type userRepository interface {
	Upsert(ctx context.Context, user *entity.User) error
}

// CatalogService serves the read side of the shop: the course list, course
// details and the courses a buyer already owns.
type CatalogService struct {
	courseRepo      catalogCourseRepository
	entitlementRepo ownedCourseRepository
	userRepo        userRepository
	paymentsCfg     config.PaymentsConfig
	logger          logrus.FieldLogger
	now             func() time.Time
}

func NewCatalogService(
	courseRepo catalogCourseRepository,
	entitlementRepo ownedCourseRepository,
	userRepo userRepository,
	paymentsCfg config.PaymentsConfig,
) *CatalogService {
	return &CatalogService{
		courseRepo:      courseRepo,
		entitlementRepo: entitlementRepo,
		userRepo:        userRepo,
		paymentsCfg:     paymentsCfg,
		logger:          factory.NewModuleLogger("catalog-service"),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *CatalogService) ListCourses(ctx context.Context) ([]*entity.Course, error) {
	items, err := s.courseRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return items, nil
}

func (s *CatalogService) Course(ctx context.Context, courseID uint64) (*entity.Course, error) {
	if courseID == 0 {
		return nil, ErrInvalidRequest
	}
	course, err := s.courseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	return course, nil
}

// UserCourses lists the courses the user is entitled to, with their
// materials links.
func (s *CatalogService) UserCourses(ctx context.Context, userID int64) ([]*entity.OwnedCourse, error) {
	if userID == 0 {
		return nil, ErrInvalidRequest
	}
	items, err := s.entitlementRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return items, nil
}

// RegisterUser records a Telegram account on first contact and refreshes its
// profile on later ones.
func (s *CatalogService) RegisterUser(ctx context.Context, userID int64, username, fullName string) error {
	if userID == 0 {
		return ErrInvalidRequest
	}

	now := s.now()
	err := s.userRepo.Upsert(ctx, &entity.User{
		ID:        userID,
		Username:  strings.TrimSpace(username),
		FullName:  strings.TrimSpace(fullName),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to register user")
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (s *CatalogService) Currency() string {
	if s.paymentsCfg.Currency != "" {
		return s.paymentsCfg.Currency
	}
	return "RUB"
}
