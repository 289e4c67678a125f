package payment

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
)

var (
	// ErrVerificationFailed: the provider reports the session/event as unpaid
	// or invalid. No state is mutated.
	ErrVerificationFailed = errors.New("payment not completed")
	// ErrInvalidEvent: the webhook payload failed signature verification.
	ErrInvalidEvent = errors.New("invalid provider event")
)

// Service is the purchase confirmation intake: the provider callback path and
// the client verification path both funnel into the ledger's single
// idempotent grant operation. The intake performs no deduplication of its
// own; replays and races are safe because the grant is.
type Service struct {
	provider Provider
	enrSvc   *enrollment.Service
	logger   core.Logger
}

func NewService(provider Provider, enrSvc *enrollment.Service, logger core.Logger) *Service {
	return &Service{
		provider: provider,
		enrSvc:   enrSvc,
		logger:   logger,
	}
}

// CreateCheckout opens a provider-hosted checkout session for the course and
// records the attempt as a pending enrollment.
func (svc *Service) CreateCheckout(ctx context.Context, userID, userEmail string, crs course.Course) (CheckoutSession, error) {
	sess, err := svc.provider.CreateCheckoutSession(ctx, CheckoutRequest{
		UserID:      userID,
		UserEmail:   userEmail,
		CourseID:    crs.ID,
		CourseTitle: crs.Title,
		AmountCents: crs.PriceCents,
		Currency:    "usd",
	})
	if err != nil {
		return CheckoutSession{}, pkgerrors.Wrap(err, "creating checkout session")
	}
	if _, err = svc.enrSvc.CreatePending(ctx, userID, crs.ID); err != nil {
		return CheckoutSession{}, err
	}
	return sess, nil
}

// HandleProviderEvent is the asynchronous callback path. Delivery is at least
// once; a replayed paid event hits the ledger's idempotency guard and is
// acknowledged without effect. Event types we do not care about are ignored.
func (svc *Service) HandleProviderEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := svc.provider.ParseWebhookEvent(payload, sigHeader)
	if err != nil {
		return pkgerrors.Wrapf(ErrInvalidEvent, "parsing provider event: %v", err)
	}
	if !event.Paid {
		return nil
	}
	if event.UserID == "" || event.CourseID == "" {
		svc.logger.Warn(fmt.Sprintf("paid event %s (%s) missing checkout metadata", event.Type, event.TxRef))
		return nil
	}

	_, _, err = svc.enrSvc.GrantAccess(ctx, enrollment.Grant{
		UserID:        event.UserID,
		CourseID:      event.CourseID,
		Origin:        enrollment.OriginProviderCallback,
		ProviderTxRef: event.TxRef,
		UserEmail:     event.Email,
	})
	return err
}

// VerifyCheckoutSession is the synchronous client path, triggered when the
// buyer's browser returns from the hosted checkout. The session is resolved
// with the provider; only a session it reports as paid results in a grant.
// A resolution failure (incl. timeout) is returned as-is: the caller retries
// the whole call, which is safe by idempotency.
func (svc *Service) VerifyCheckoutSession(ctx context.Context, sessionID string) (courseID string, err error) {
	result, err := svc.provider.ResolveSession(ctx, sessionID)
	if err != nil {
		return "", pkgerrors.Wrap(err, "resolving checkout session")
	}
	if !result.Paid {
		return "", ErrVerificationFailed
	}

	_, _, err = svc.enrSvc.GrantAccess(ctx, enrollment.Grant{
		UserID:        result.UserID,
		CourseID:      result.CourseID,
		Origin:        enrollment.OriginClientVerify,
		ProviderTxRef: result.TxRef,
		UserEmail:     result.Email,
	})
	if err != nil {
		return "", err
	}
	return result.CourseID, nil
}
