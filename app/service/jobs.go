package service

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-course-shop/app/entity"
)

// RunExpireStaleBatch expires pending payments older than the invoice TTL
// whose timers were lost, for example across a restart.
func (s *PaymentService) RunExpireStaleBatch(ctx context.Context) error {
	cutoff := s.now().Add(-s.invoiceTTL())
	items, err := s.paymentRepo.ListStalePending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.Status != entity.PaymentStatusPending {
			continue
		}
		if _, err := s.Expire(ctx, payment.ID); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunReconcileBatch polls the gateway for pending redirect payments that have
// not been resolved by a webhook.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	before := s.now().Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.paymentRepo.ListForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.ProviderPaymentID == nil || strings.TrimSpace(*payment.ProviderPaymentID) == "" {
			continue
		}

		providerClient, err := s.providerReg.Get(payment.Method)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		status, err := providerClient.GetPaymentStatus(ctx, strings.TrimSpace(*payment.ProviderPaymentID))
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		switch status {
		case entity.PaymentStatusSucceeded:
			_, err = s.Confirm(ctx, payment.ID, SourceReconcile)
		case entity.PaymentStatusCanceled:
			_, err = s.Cancel(ctx, payment.ID, SourceReconcile)
		default:
			continue
		}
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
