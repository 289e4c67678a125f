package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kozi/core/course"
	"github.com/trezcool/kozi/core/enrollment"
	"github.com/trezcool/kozi/core/progress"
)

type meApi struct {
	enrSvc  *enrollment.Service
	progSvc *progress.Service
}

func registerMeAPI(g *echo.Group, jwt echo.MiddlewareFunc, enrSvc *enrollment.Service, progSvc *progress.Service) {
	api := meApi{enrSvc: enrSvc, progSvc: progSvc}

	mg := g.Group("/me", jwt)
	mg.GET("/courses", api.listCourses)

	pg := mg.Group("/courses/:id/progress")
	pg.GET("", api.retrieveProgress)
	pg.POST("/lessons/:lessonID", api.markLessonViewed)
	pg.DELETE("", api.resetProgress)
}

// Handlers

func (api *meApi) listCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	courses, err := api.enrSvc.ListUserCourses(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing user courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *meApi) retrieveProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	prog, err := api.progSvc.GetProgress(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return api.mapProgressErr(err)
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *meApi) markLessonViewed(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	prog, err := api.progSvc.MarkLessonViewed(ctx.Request().Context(), progress.MarkViewed{
		UserID:    claims.Subject,
		CourseID:  ctx.Param("id"),
		LessonID:  ctx.Param("lessonID"),
		UserEmail: claims.Email,
	})
	if err != nil {
		return api.mapProgressErr(err)
	}
	return ctx.JSON(http.StatusOK, prog)
}

func (api *meApi) resetProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	if _, err = api.progSvc.Reset(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return api.mapProgressErr(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *meApi) mapProgressErr(err error) error {
	switch errors.Cause(err) {
	case progress.ErrNotPurchased:
		return errNotPurchased
	case progress.ErrNoProgress, course.ErrNotFound:
		return errHttpNotFound
	default:
		return err
	}
}
