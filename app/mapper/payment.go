package mapper

import (
	"strconv"
	"time"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/types"
	"google.golang.org/protobuf/types/known/structpb"
)

func PaymentToResponse(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	return &types.Payment{
		ID:                item.ID,
		UserID:            item.UserID,
		CourseID:          item.CourseID,
		Amount:            item.Amount.StringFixed(2),
		Currency:          item.Currency,
		Status:            item.Status,
		Method:            item.Method,
		InvoiceMessageID:  derefInt(item.InvoiceMessageID),
		ProviderPaymentID: derefString(item.ProviderPaymentID),
		CreatedAt:         formatTime(item.CreatedAt),
		UpdatedAt:         formatTime(item.UpdatedAt),
		ResolvedAt:        formatTimePtr(item.ResolvedAt),
	}
}

// PaymentToStruct renders a payment for the operator gRPC surface. Ids are
// strings since structpb numbers are float64.
func PaymentToStruct(item *entity.Payment) (*structpb.Struct, error) {
	if item == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}

	resp := PaymentToResponse(item)
	fields := map[string]interface{}{
		"id":         formatUint(resp.ID),
		"user_id":    formatInt(resp.UserID),
		"course_id":  formatUint(resp.CourseID),
		"amount":     resp.Amount,
		"currency":   resp.Currency,
		"status":     resp.Status,
		"method":     resp.Method,
		"created_at": resp.CreatedAt,
		"updated_at": resp.UpdatedAt,
	}
	if resp.InvoiceMessageID != 0 {
		fields["invoice_message_id"] = float64(resp.InvoiceMessageID)
	}
	if resp.ProviderPaymentID != "" {
		fields["provider_payment_id"] = resp.ProviderPaymentID
	}
	if resp.ResolvedAt != "" {
		fields["resolved_at"] = resp.ResolvedAt
	}

	return structpb.NewStruct(fields)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}

func formatTimePtr(v *time.Time) string {
	if v == nil {
		return ""
	}
	return formatTime(*v)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// PaymentEventsToValues renders an audit trail as a list usable in a structpb
// document.
func PaymentEventsToValues(items []*entity.PaymentEvent) []interface{} {
	result := make([]interface{}, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		event := map[string]interface{}{
			"event_type": item.EventType,
			"source":     item.Source,
			"new_status": item.NewStatus,
			"created_at": formatTime(item.CreatedAt),
		}
		if item.OldStatus != nil {
			event["old_status"] = *item.OldStatus
		}
		if item.PayloadJSON != nil {
			event["payload"] = *item.PayloadJSON
		}
		result = append(result, event)
	}
	return result
}
