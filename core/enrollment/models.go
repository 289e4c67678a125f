package enrollment

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Status is the access status of a (user, course) pair.
type Status string

const (
	StatusNone    Status = "none" // no record at all; never persisted
	StatusPending Status = "pending"
	StatusGranted Status = "granted"
	StatusFailed  Status = "failed"
)

// Origin is the entry path that produced a grant attempt.
type Origin string

const (
	OriginDirect           Origin = "direct"
	OriginProviderCallback Origin = "provider_callback"
	OriginClientVerify     Origin = "client_verify"
)

// Enrollment is the canonical access record: the single source of truth for
// "does this user have paid access to this course". At most one row exists
// per (UserID, CourseID) and StatusGranted is terminal.
type Enrollment struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	CourseID      string      `json:"course_id"`
	Status        Status      `json:"status"`
	Origin        Origin      `json:"origin"`
	ProviderTxRef null.String `json:"provider_tx_ref,omitempty"`
	GrantedAt     null.Time   `json:"granted_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
	UpdatedAt     time.Time   `json:"updated_at"` // UTC
}

func (e *Enrollment) IsGranted() bool { return e.Status == StatusGranted }

// StudentCourse is the legacy per-user purchased-course mirror. It is derived
// from the ledger inside the grant transaction and is only ever read for
// display; access decisions always go through the ledger.
type StudentCourse struct {
	UserID      string    `json:"user_id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	TeacherID   string    `json:"teacher_id"`
	ImageURL    string    `json:"image_url"`
	PurchasedAt time.Time `json:"purchased_at"` // UTC
}

// Order is the legacy order-audit mirror, one row per successful grant.
type Order struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	CourseID      string      `json:"course_id"`
	CourseTitle   string      `json:"course_title"`
	PriceCents    int64       `json:"price_cents"`
	ProviderTxRef null.String `json:"provider_tx_ref,omitempty"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"` // UTC
}

// OrderStatusConfirmed is the only order status the ledger ever writes.
const OrderStatusConfirmed = "confirmed"

// GrantMirrors carries the mirror rows reconciled atomically with a grant.
type GrantMirrors struct {
	StudentCourse StudentCourse
	Order         Order
}
