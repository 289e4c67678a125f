package payment

import "context"

// Event is a normalized asynchronous provider event, delivered at least once.
type Event struct {
	Type     string
	TxRef    string
	UserID   string
	CourseID string
	Email    string
	Paid     bool
}

// CheckoutRequest is what the provider needs to host a checkout page.
type CheckoutRequest struct {
	UserID      string
	UserEmail   string
	CourseID    string
	CourseTitle string
	AmountCents int64
	Currency    string
}

// CheckoutSession is a provider-hosted checkout the buyer is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// SessionResult is the provider's answer when a checkout session is resolved
// server-to-server after the buyer returns.
type SessionResult struct {
	Paid        bool
	TxRef       string
	UserID      string
	CourseID    string
	Email       string
	AmountCents int64
}

// Provider abstracts the payment provider SDK. Implementations own
// authenticity concerns: ParseWebhookEvent verifies the payload signature and
// ResolveSession is an authenticated server-to-server call with a bounded
// timeout (the caller treats a timeout as "not yet confirmed", never as a
// negative confirmation).
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
	ResolveSession(ctx context.Context, sessionID string) (SessionResult, error)
	ParseWebhookEvent(payload []byte, sigHeader string) (Event, error)
}
