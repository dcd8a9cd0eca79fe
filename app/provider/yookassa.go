package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

const CodeYooKassa = "yookassa"

var idempotenceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://api.yookassa.ru/v3/payments"))

// IdempotenceKey is stable per local payment so a retried create is
// deduplicated by the gateway.
func IdempotenceKey(paymentID uint64) string {
	return uuid.NewSHA1(idempotenceNamespace, []byte(strconv.FormatUint(paymentID, 10))).String()
}

type YooKassaConfig struct {
	ShopID              string
	SecretKey           string
	BaseURL             string
	ReturnURL           string
	HTTPTimeout         time.Duration
	VerifyNotifications bool
}

type YooKassaProvider struct {
	cfg    YooKassaConfig
	client *resty.Client
}

type yooKassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooKassaPayment struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	Paid         bool            `json:"paid"`
	Amount       yooKassaAmount  `json:"amount"`
	Metadata     json.RawMessage `json:"metadata"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func NewYooKassaProvider(cfg YooKassaConfig) *YooKassaProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.yookassa.ru/v3"
	}
	cfg.BaseURL = baseURL

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.ShopID, cfg.SecretKey).
		SetHeader("Content-Type", "application/json")

	return &YooKassaProvider{cfg: cfg, client: client}
}

func (p *YooKassaProvider) Code() string {
	return CodeYooKassa
}

func (p *YooKassaProvider) CreatePayment(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if strings.TrimSpace(p.cfg.ShopID) == "" || strings.TrimSpace(p.cfg.SecretKey) == "" {
		return nil, errors.New("yookassa credentials are not configured")
	}
	if input == nil || input.PaymentID == 0 {
		return nil, errors.New("payment id is required")
	}

	body := map[string]interface{}{
		"amount": yooKassaAmount{
			Value:    input.Amount.StringFixed(2),
			Currency: strings.ToUpper(input.Currency),
		},
		"capture": true,
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": p.cfg.ReturnURL,
		},
		"description": input.Description,
		"metadata": map[string]string{
			MetadataPaymentID: strconv.FormatUint(input.PaymentID, 10),
			MetadataUserID:    strconv.FormatInt(input.UserID, 10),
			MetadataCourseID:  strconv.FormatUint(input.CourseID, 10),
			MetadataMessageID: strconv.Itoa(input.MessageID),
		},
	}

	var out yooKassaPayment
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Idempotence-Key", IdempotenceKey(input.PaymentID)).
		SetBody(body).
		SetResult(&out).
		Post("/payments")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yookassa create payment failed: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	if out.ID == "" || out.Confirmation.ConfirmationURL == "" {
		return nil, errors.New("yookassa response is missing payment id or confirmation url")
	}

	return &CreateOutput{
		ProviderPaymentID: out.ID,
		ConfirmationURL:   out.Confirmation.ConfirmationURL,
		Status:            mapYooKassaStatus(out.Status),
	}, nil
}

func (p *YooKassaProvider) GetPaymentStatus(ctx context.Context, providerPaymentID string) (string, error) {
	payment, err := p.fetchPayment(ctx, providerPaymentID)
	if err != nil {
		return "", err
	}
	return mapYooKassaStatus(payment.Status), nil
}

// ParseNotification decodes a webhook body. With VerifyNotifications the
// status and metadata are taken from the API instead of the request.
func (p *YooKassaProvider) ParseNotification(ctx context.Context, payload []byte) (*Notification, error) {
	var notification struct {
		Type   string          `json:"type"`
		Event  string          `json:"event"`
		Object yooKassaPayment `json:"object"`
	}
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, err
	}
	if strings.TrimSpace(notification.Object.ID) == "" {
		return nil, errors.New("notification object id is empty")
	}

	object := notification.Object
	if p.cfg.VerifyNotifications {
		fetched, err := p.fetchPayment(ctx, object.ID)
		if err != nil {
			return nil, fmt.Errorf("verify notification: %w", err)
		}
		object = *fetched
	}

	metadata, err := decodeMetadata(object.Metadata)
	if err != nil {
		return nil, err
	}

	return &Notification{
		Event:             notification.Event,
		ProviderPaymentID: object.ID,
		Status:            mapYooKassaStatus(object.Status),
		Metadata:          metadata,
	}, nil
}

func (p *YooKassaProvider) fetchPayment(ctx context.Context, providerPaymentID string) (*yooKassaPayment, error) {
	providerPaymentID = strings.TrimSpace(providerPaymentID)
	if providerPaymentID == "" {
		return nil, errors.New("provider payment id is empty")
	}

	var out yooKassaPayment
	resp, err := p.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/payments/" + url.PathEscape(providerPaymentID))
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("yookassa get payment failed: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}

// decodeMetadata flattens metadata values to strings. Numbers stay in their
// literal form so the caller can validate them.
func decodeMetadata(raw json.RawMessage) (map[string]string, error) {
	result := map[string]string{}
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return result, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var values map[string]interface{}
	if err := decoder.Decode(&values); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	for key, value := range values {
		switch v := value.(type) {
		case string:
			result[key] = v
		case json.Number:
			result[key] = v.String()
		case nil:
		default:
			result[key] = fmt.Sprint(v)
		}
	}
	return result, nil
}

func mapYooKassaStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return entity.PaymentStatusSucceeded
	case "canceled":
		return entity.PaymentStatusCanceled
	default:
		return entity.PaymentStatusPending
	}
}
