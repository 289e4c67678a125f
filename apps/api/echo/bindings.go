package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/kozi/core"
	"github.com/trezcool/kozi/core/course"
)

type CheckoutRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

func (r *CheckoutRequest) Validate(validate *validator.Validate) error {
	r.CourseID = core.CleanString(r.CourseID)
	return validate.Struct(r)
}

// bindCourseFilter binds the published-listing query params.
func bindCourseFilter(ctx echo.Context) course.QueryFilter {
	var filter course.QueryFilter
	_ = ctx.Bind(&filter)
	filter.Clean()
	return filter
}
