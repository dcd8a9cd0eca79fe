package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
	"github.com/vibast-solutions/ms-go-course-shop/app/factory"
	"github.com/vibast-solutions/ms-go-course-shop/app/mapper"
	"github.com/vibast-solutions/ms-go-course-shop/app/service"
	"github.com/vibast-solutions/ms-go-course-shop/app/types"
)

type paymentService interface {
	GetPayment(ctx context.Context, id uint64) (*entity.Payment, error)
	HandleProviderNotification(ctx context.Context, providerCode string, body []byte) error
}

type PaymentController struct {
	paymentService paymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService paymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

// ProviderNotification accepts a gateway delivery. It always answers 200 so
// the gateway stops retrying; failures are only logged.
func (c *PaymentController) ProviderNotification(ctx echo.Context) error {
	logger := factory.LoggerWithContext(c.logger, ctx)

	req, err := types.NewProviderNotificationRequestFromContext(ctx)
	if err != nil {
		logger.WithError(err).Warn("Failed to read provider notification")
		return c.acknowledge(ctx)
	}
	if err := req.Validate(); err != nil {
		logger.WithError(err).Warn("Invalid provider notification")
		return c.acknowledge(ctx)
	}

	logger = logger.WithField("provider", req.Provider)
	if err := c.paymentService.HandleProviderNotification(ctx.Request().Context(), req.Provider, req.Body); err != nil {
		switch {
		case errors.Is(err, service.ErrProviderUnsupported), errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrPaymentNotFound):
			logger.WithError(err).Warn("Provider notification rejected")
		default:
			logger.WithError(err).Error("Provider notification failed")
		}
	}

	return c.acknowledge(ctx)
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid payment id")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, service.ErrPaymentNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "payment not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Get payment failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToResponse(item)})
}

func (c *PaymentController) acknowledge(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "ok"})
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
