package payment_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
	"github.com/trezcool/kozi/core/payment"
	emailsvc "github.com/trezcool/kozi/services/email"
	paymentsvc "github.com/trezcool/kozi/services/payment"
	dummydb "github.com/trezcool/kozi/storage/database/dummy"
	testutil "github.com/trezcool/kozi/tests"
)

const webhookSecret = "whsec_test"

type testDeps struct {
	svc        *payment.Service
	enrSvc     *enrollment.Service
	provider   *paymentsvc.DummyProvider
	courseRepo course.Repository
	db         *dummydb.DB
	logger     *testutil.Logger
}

func setup(t *testing.T) testDeps {
	testutil.Setup()
	emailsvc.ClearSentMessages()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	courseRepo := dummydb.NewCourseRepository(db)
	courseSvc := course.NewService(courseRepo)
	logger := testutil.NewLogger()
	enrSvc := enrollment.NewService(dummydb.NewEnrollmentRepository(db), courseSvc, emailsvc.NewConsoleServiceMock(), logger)
	provider := paymentsvc.NewDummyProvider(webhookSecret)
	svc := payment.NewService(provider, enrSvc, logger)
	return testDeps{svc: svc, enrSvc: enrSvc, provider: provider, courseRepo: courseRepo, db: db, logger: logger}
}

func (d testDeps) checkout(t *testing.T, userID string, crs course.Course) payment.CheckoutSession {
	t.Helper()
	sess, err := d.svc.CreateCheckout(context.Background(), userID, userID+"@test.cd", crs)
	if err != nil {
		t.Fatalf("CreateCheckout() failed: %v", err)
	}
	return sess
}

func eventPayload(t *testing.T, event payment.Event) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("eventPayload() failed: %v", err)
	}
	return payload
}

func TestService_CreateCheckout(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewHierarchicalCourse("crs-1", 2))

	sess := d.checkout(t, "usr-1", crs)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.URL)

	// the attempt is recorded but grants nothing
	status, err := d.enrSvc.CheckAccess(ctx, "usr-1", crs.ID)
	if err != nil {
		t.Fatalf("CheckAccess() failed: %v", err)
	}
	assert.Equal(t, enrollment.StatusPending, status)
}

func TestService_HandleProviderEvent(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewHierarchicalCourse("crs-1", 2))
	sess := d.checkout(t, "usr-1", crs)

	event, err := d.provider.MarkPaid(sess.ID)
	if err != nil {
		t.Fatalf("MarkPaid() failed: %v", err)
	}
	payload := eventPayload(t, event)

	// bad signature mutates nothing
	err = d.svc.HandleProviderEvent(ctx, payload, "whsec_wrong")
	assert.Equal(t, payment.ErrInvalidEvent, pkgerrors.Cause(err))
	status, _ := d.enrSvc.CheckAccess(ctx, "usr-1", crs.ID)
	assert.Equal(t, enrollment.StatusPending, status)

	// the genuine event grants access
	if err = d.svc.HandleProviderEvent(ctx, payload, webhookSecret); err != nil {
		t.Fatalf("HandleProviderEvent() failed: %v", err)
	}
	status, _ = d.enrSvc.CheckAccess(ctx, "usr-1", crs.ID)
	assert.Equal(t, enrollment.StatusGranted, status)

	// at-least-once delivery: the replay is acknowledged without effect
	if err = d.svc.HandleProviderEvent(ctx, payload, webhookSecret); err != nil {
		t.Fatalf("HandleProviderEvent() replay failed: %v", err)
	}
	assert.Len(t, d.db.Orders("usr-1"), 1)
}

func TestService_HandleProviderEvent_ignored(t *testing.T) {
	d := setup(t)
	ctx := context.Background()

	// unpaid events are acknowledged and ignored
	payload := eventPayload(t, payment.Event{Type: "payment_intent.created", TxRef: "pi_1", UserID: "usr-1", CourseID: "crs-1"})
	if err := d.svc.HandleProviderEvent(ctx, payload, webhookSecret); err != nil {
		t.Fatalf("HandleProviderEvent() failed: %v", err)
	}
	status, _ := d.enrSvc.CheckAccess(ctx, "usr-1", "crs-1")
	assert.Equal(t, enrollment.StatusNone, status)

	// a paid event without checkout metadata cannot be mapped; logged, not retried
	payload = eventPayload(t, payment.Event{Type: "payment_intent.succeeded", TxRef: "pi_2", Paid: true})
	if err := d.svc.HandleProviderEvent(ctx, payload, webhookSecret); err != nil {
		t.Fatalf("HandleProviderEvent() failed: %v", err)
	}
	entries := d.logger.Entries()
	if assert.Len(t, entries, 1) {
		assert.Contains(t, entries[0], "missing checkout metadata")
	}
}

func TestService_VerifyCheckoutSession(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewHierarchicalCourse("crs-1", 2))
	sess := d.checkout(t, "usr-1", crs)

	// the provider has not confirmed payment yet
	_, err := d.svc.VerifyCheckoutSession(ctx, sess.ID)
	assert.Equal(t, payment.ErrVerificationFailed, pkgerrors.Cause(err))
	status, _ := d.enrSvc.CheckAccess(ctx, "usr-1", crs.ID)
	assert.Equal(t, enrollment.StatusPending, status)

	// an unknown session resolves to an error, not a grant
	_, err = d.svc.VerifyCheckoutSession(ctx, "cs_ghost")
	assert.Error(t, err)

	if _, err = d.provider.MarkPaid(sess.ID); err != nil {
		t.Fatalf("MarkPaid() failed: %v", err)
	}
	courseID, err := d.svc.VerifyCheckoutSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("VerifyCheckoutSession() failed: %v", err)
	}
	assert.Equal(t, crs.ID, courseID)
	status, _ = d.enrSvc.CheckAccess(ctx, "usr-1", crs.ID)
	assert.Equal(t, enrollment.StatusGranted, status)

	// the client retrying the redirect is as safe as a webhook replay
	if _, err = d.svc.VerifyCheckoutSession(ctx, sess.ID); err != nil {
		t.Fatalf("VerifyCheckoutSession() retry failed: %v", err)
	}
	assert.Len(t, d.db.Orders("usr-1"), 1)
}

// Both confirmation paths race for the same purchase; the ledger lets exactly
// one of them through.
func TestService_bothPathsRace(t *testing.T) {
	d := setup(t)
	ctx := context.Background()
	crs := testutil.CreateCourse(t, d.courseRepo, testutil.NewLegacyCourse("crs-1", 4))
	sess := d.checkout(t, "usr-1", crs)

	event, err := d.provider.MarkPaid(sess.ID)
	if err != nil {
		t.Fatalf("MarkPaid() failed: %v", err)
	}
	payload := eventPayload(t, event)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := d.svc.HandleProviderEvent(ctx, payload, webhookSecret); err != nil {
			t.Errorf("HandleProviderEvent() failed: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := d.svc.VerifyCheckoutSession(ctx, sess.ID); err != nil {
			t.Errorf("VerifyCheckoutSession() failed: %v", err)
		}
	}()
	wg.Wait()

	status, _ := d.enrSvc.CheckAccess(ctx, "usr-1", crs.ID)
	assert.Equal(t, enrollment.StatusGranted, status)
	assert.Len(t, d.db.StudentCourses("usr-1"), 1)
	assert.Len(t, d.db.Orders("usr-1"), 1)
}
