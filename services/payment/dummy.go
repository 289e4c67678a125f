package paymentsvc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core/payment"
)

// DummyProvider holds checkout sessions in memory. Sessions start unpaid and
// are flipped with MarkPaid, letting tests and local dev drive both
// confirmation paths without a provider account.
type DummyProvider struct {
	mu            sync.Mutex
	sessions      map[string]dummySession
	webhookSecret string
}

type dummySession struct {
	req  payment.CheckoutRequest
	paid bool
}

var _ payment.Provider = (*DummyProvider)(nil)

func NewDummyProvider(webhookSecret string) *DummyProvider {
	return &DummyProvider{
		sessions:      make(map[string]dummySession),
		webhookSecret: webhookSecret,
	}
}

func (p *DummyProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := "cs_dummy_" + uuid.New().String()
	p.sessions[id] = dummySession{req: req}
	return payment.CheckoutSession{ID: id, URL: "https://checkout.invalid/pay/" + id}, nil
}

func (p *DummyProvider) ResolveSession(_ context.Context, sessionID string) (payment.SessionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[sessionID]
	if !ok {
		return payment.SessionResult{}, errors.Errorf("unknown checkout session %q", sessionID)
	}
	return payment.SessionResult{
		Paid:        sess.paid,
		TxRef:       sessionID,
		UserID:      sess.req.UserID,
		CourseID:    sess.req.CourseID,
		Email:       sess.req.UserEmail,
		AmountCents: sess.req.AmountCents,
	}, nil
}

// ParseWebhookEvent expects the raw payment.Event as JSON and the shared
// secret as the signature header.
func (p *DummyProvider) ParseWebhookEvent(payload []byte, sigHeader string) (payment.Event, error) {
	if sigHeader != p.webhookSecret {
		return payment.Event{}, errors.New("signature mismatch")
	}
	var event payment.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return payment.Event{}, errors.Wrap(err, "decoding event payload")
	}
	return event, nil
}

// MarkPaid flips a session to paid; the returned event is what the provider
// would have delivered on its webhook.
func (p *DummyProvider) MarkPaid(sessionID string) (payment.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[sessionID]
	if !ok {
		return payment.Event{}, errors.Errorf("unknown checkout session %q", sessionID)
	}
	sess.paid = true
	p.sessions[sessionID] = sess
	return payment.Event{
		Type:     "payment_intent.succeeded",
		TxRef:    sessionID,
		UserID:   sess.req.UserID,
		CourseID: sess.req.CourseID,
		Email:    sess.req.UserEmail,
		Paid:     true,
	}, nil
}
