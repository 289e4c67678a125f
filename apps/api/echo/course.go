package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
)

type courseApi struct {
	svc    *course.Service
	enrSvc *enrollment.Service
}

func registerCourseAPI(g *echo.Group, optionalJWT echo.MiddlewareFunc, svc *course.Service, enrSvc *enrollment.Service) {
	api := courseApi{svc: svc, enrSvc: enrSvc}

	cg := g.Group("/courses")
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve, optionalJWT)
	cg.GET("/:id/lessons/:lessonID", api.serveLesson, optionalJWT)
}

// CourseDetailResponse decorates a course with the caller's access status so
// the client can redirect purchasers past the buy page.
type CourseDetailResponse struct {
	course.Course
	AccessStatus enrollment.Status `json:"access_status"`
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	filter := bindCourseFilter(ctx)
	courses, err := api.svc.QueryPublished(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying published courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.getCourse(ctx)
	if err != nil {
		return err
	}

	resp := CourseDetailResponse{Course: crs, AccessStatus: enrollment.StatusNone}
	if claims := optionalContextClaims(ctx); claims.Subject != "" {
		status, err := api.enrSvc.CheckAccess(ctx.Request().Context(), claims.Subject, crs.ID)
		if err != nil {
			return errors.Wrap(err, "checking access")
		}
		resp.AccessStatus = status
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *courseApi) serveLesson(ctx echo.Context) error {
	crs, err := api.getCourse(ctx)
	if err != nil {
		return err
	}

	lesson, ok := crs.FindLesson(ctx.Param("lessonID"))
	if !ok {
		return errHttpNotFound
	}

	claims := optionalContextClaims(ctx)
	accessible, err := api.enrSvc.IsLessonAccessible(ctx.Request().Context(), claims.Subject, crs, lesson.ID)
	if err != nil {
		return errors.Wrap(err, "checking lesson access")
	}
	if !accessible {
		return errNotPurchased
	}
	return ctx.JSON(http.StatusOK, lesson)
}

func (api *courseApi) getCourse(ctx echo.Context) (course.Course, error) {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return course.Course{}, errHttpNotFound
		}
		return course.Course{}, errors.Wrap(err, "fetching course")
	}
	return crs, nil
}
