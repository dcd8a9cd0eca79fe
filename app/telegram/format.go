package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

const (
	methodTelegram = entity.PaymentMethodTelegram
	methodYooKassa = entity.PaymentMethodYooKassa
)

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func courseTitle(course *entity.Course, courseID uint64) string {
	if course != nil && strings.TrimSpace(course.Title) != "" {
		return course.Title
	}
	return "course #" + formatID(courseID)
}

func formatAmount(payment *entity.Payment) string {
	return payment.Amount.StringFixed(2) + " " + payment.Currency
}

func formatHistory(items []*entity.PurchaseRecord) string {
	if len(items) == 0 {
		return "You have no purchases yet."
	}

	var sb strings.Builder
	sb.WriteString("Your purchases:\n")
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("#%d %s, %s %s, %s, %s\n",
			item.PaymentID,
			item.CourseTitle,
			item.Amount.StringFixed(2),
			item.Currency,
			item.Status,
			item.CreatedAt.Format("2006-01-02 15:04"),
		))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCourseDetails(course *entity.Course, currency string) string {
	description := strings.TrimSpace(course.FullDescription)
	if description == "" {
		description = course.ShortDescription
	}

	var sb strings.Builder
	sb.WriteString(course.Title)
	if description != "" {
		sb.WriteString("\n\n")
		sb.WriteString(description)
	}
	sb.WriteString(fmt.Sprintf("\n\nPrice: %s %s", course.Price.StringFixed(2), currency))
	return sb.String()
}

func formatOwnedCourses(items []*entity.OwnedCourse) string {
	if len(items) == 0 {
		return "You have not bought any courses yet."
	}

	var sb strings.Builder
	sb.WriteString("Your courses:\n")
	for _, item := range items {
		link := item.MaterialsLink
		if link == "" {
			link = "materials will be shared soon"
		}
		sb.WriteString(fmt.Sprintf("\n%s\nMaterials: %s\n", item.Title, link))
	}
	return strings.TrimRight(sb.String(), "\n")
}
