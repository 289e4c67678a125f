package paymentsvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/payment"
)

// checkout metadata keys; set on session creation and read back from
// webhook events and resolved sessions.
const (
	metaUserID    = "user_id"
	metaUserEmail = "user_email"
	metaCourseID  = "course_id"
)

type StripeProvider struct {
	api           *client.API
	webhookSecret string
	timeout       time.Duration
	frontendURL   string
}

var _ payment.Provider = (*StripeProvider)(nil)

func NewStripeProvider(conf *core.Config) *StripeProvider {
	api := &client.API{}
	api.Init(conf.Stripe.SecretKey, nil)
	return &StripeProvider{
		api:           api,
		webhookSecret: conf.Stripe.WebhookSecret,
		timeout:       conf.Stripe.SessionTimeout,
		frontendURL:   conf.FrontendBaseURL,
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.frontendURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(p.frontendURL + "/courses/" + req.CourseID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.CourseTitle),
				},
			},
		}},
	}
	if req.UserEmail != "" {
		params.CustomerEmail = stripe.String(req.UserEmail)
	}
	params.Context = ctx
	// carried on both the session and the payment intent so either webhook
	// shape can be mapped back to a (user, course) pair
	for k, v := range map[string]string{metaUserID: req.UserID, metaUserEmail: req.UserEmail, metaCourseID: req.CourseID} {
		params.AddMetadata(k, v)
	}
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: map[string]string{metaUserID: req.UserID, metaUserEmail: req.UserEmail, metaCourseID: req.CourseID},
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return payment.CheckoutSession{}, errors.Wrap(err, "stripe: creating checkout session")
	}
	return payment.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *StripeProvider) ResolveSession(ctx context.Context, sessionID string) (payment.SessionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := p.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return payment.SessionResult{}, errors.Wrap(err, "stripe: retrieving checkout session")
	}

	res := payment.SessionResult{
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		TxRef:       sess.ID,
		UserID:      sess.Metadata[metaUserID],
		CourseID:    sess.Metadata[metaCourseID],
		Email:       sess.Metadata[metaUserEmail],
		AmountCents: sess.AmountTotal,
	}
	if sess.PaymentIntent != nil {
		res.TxRef = sess.PaymentIntent.ID
	}
	if res.Email == "" && sess.CustomerDetails != nil {
		res.Email = sess.CustomerDetails.Email
	}
	return res, nil
}

func (p *StripeProvider) ParseWebhookEvent(payload []byte, sigHeader string) (payment.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return payment.Event{}, errors.Wrap(err, "stripe: verifying webhook signature")
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return payment.Event{}, errors.Wrap(err, "stripe: decoding payment intent")
		}
		return payment.Event{
			Type:     event.Type,
			TxRef:    pi.ID,
			UserID:   pi.Metadata[metaUserID],
			CourseID: pi.Metadata[metaCourseID],
			Email:    pi.Metadata[metaUserEmail],
			Paid:     pi.Status == stripe.PaymentIntentStatusSucceeded,
		}, nil
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return payment.Event{}, errors.Wrap(err, "stripe: decoding checkout session")
		}
		return payment.Event{
			Type:     event.Type,
			TxRef:    sess.ID,
			UserID:   sess.Metadata[metaUserID],
			CourseID: sess.Metadata[metaCourseID],
			Email:    sess.Metadata[metaUserEmail],
			Paid:     sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		}, nil
	}
	// unhandled event types are acknowledged, not failed
	return payment.Event{Type: event.Type}, nil
}
