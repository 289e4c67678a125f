package echoapi

import (
	"io/ioutil"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/payment"
)

const signatureHeader = "Stripe-Signature"

type paymentApi struct {
	svc       *payment.Service
	courseSvc *course.Service
	validate  *validator.Validate
}

func registerPaymentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *payment.Service, courseSvc *course.Service, validate *validator.Validate) {
	api := paymentApi{svc: svc, courseSvc: courseSvc, validate: validate}

	pg := g.Group("/payments")

	// provider events are authenticated by signature, not by JWT
	pg.POST("/webhook", api.webhook)

	ag := pg.Group("/checkout-session", jwt)
	ag.POST("", api.createCheckout)
	ag.GET("/verify", api.verifyCheckout)
}

// Handlers

func (api *paymentApi) createCheckout(ctx echo.Context) error {
	var data CheckoutRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckoutRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	crs, err := api.courseSvc.GetByID(ctx.Request().Context(), data.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "course not found"})
		}
		return errors.Wrap(err, "fetching course")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sess, err := api.svc.CreateCheckout(ctx.Request().Context(), claims.Subject, claims.Email, crs)
	if err != nil {
		return errors.Wrap(err, "creating checkout")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *paymentApi) verifyCheckout(ctx echo.Context) error {
	sessionID := core.CleanString(ctx.QueryParam("session_id"))
	if sessionID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "session_id", Error: "this field is required"})
	}

	courseID, err := api.svc.VerifyCheckoutSession(ctx.Request().Context(), sessionID)
	if err != nil {
		if errors.Cause(err) == payment.ErrVerificationFailed {
			return errPaymentNotDone
		}
		return errors.Wrap(err, "verifying checkout session")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"course_id": courseID})
}

func (api *paymentApi) webhook(ctx echo.Context) error {
	payload, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook body")
	}

	err = api.svc.HandleProviderEvent(ctx.Request().Context(), payload, ctx.Request().Header.Get(signatureHeader))
	if err != nil {
		if errors.Cause(err) == payment.ErrInvalidEvent {
			return errInvalidWebhook
		}
		// a 5xx makes the provider redeliver, which is safe by idempotency
		return errors.Wrap(err, "handling provider event")
	}
	return ctx.NoContent(http.StatusOK)
}
