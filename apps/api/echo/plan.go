package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
)

type planApi struct {
	svc      plan.ServiceInterface
	validate *validator.Validate
}

func registerPlanAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc plan.ServiceInterface, validate *validator.Validate) {
	api := planApi{
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/plan", jwt, userMiddleware())
	pg.GET("", api.query)
	pg.POST("/generate", api.generate)
	pg.POST("/recreate", api.recreate)
	pg.PATCH("/items/:id", api.toggleItem)
}

// Handlers

func (api *planApi) query(ctx echo.Context) error {
	var q PlanQuery
	if err := q.Bind(ctx, api.validate); err != nil {
		return err
	}

	days, err := api.svc.Query(ctx.Request().Context(), getUserID(ctx), q.FromDate(plan.NowFunc()))
	if err != nil {
		return errors.Wrap(err, "querying plan")
	}
	return ctx.JSON(http.StatusOK, PlanResponse{PlanDays: days})
}

func (api *planApi) generate(ctx echo.Context) error {
	out, err := api.svc.Generate(ctx.Request().Context(), getUserID(ctx))
	if err != nil {
		return errors.Wrap(err, "generating plan")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *planApi) recreate(ctx echo.Context) error {
	out, err := api.svc.Recreate(ctx.Request().Context(), getUserID(ctx))
	if err != nil {
		return errors.Wrap(err, "recreating plan")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *planApi) toggleItem(ctx echo.Context) error {
	var data ToggleItemRequest
	if err := data.Bind(ctx, api.validate); err != nil {
		return err
	}

	item, err := api.svc.ToggleItemCompletion(ctx.Request().Context(), getUserID(ctx), ctx.Param("id"), *data.Completed)
	if err != nil {
		return errors.Wrap(err, "toggling plan item")
	}
	return ctx.JSON(http.StatusOK, item)
}
