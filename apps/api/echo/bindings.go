package echoapi

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

type (
	// PlanQuery filters the live plan; From defaults to today.
	PlanQuery struct {
		From string `query:"from" validate:"omitempty,isodate"`
	}

	ToggleItemRequest struct {
		Completed *bool `json:"completed" validate:"required"`
	}

	PlanResponse struct {
		PlanDays []schedule.PlanDay `json:"plan_days"`
	}
)

func (q *PlanQuery) Bind(ctx echo.Context, validate *validator.Validate) error {
	q.From = ctx.QueryParam("from")
	return validate.Struct(q)
}

// FromDate returns the requested start date, or today.
func (q PlanQuery) FromDate(now time.Time) time.Time {
	if d, err := time.Parse(core.DateLayout, q.From); err == nil {
		return d
	}
	return schedule.DateOf(now.UTC())
}

func (r *ToggleItemRequest) Bind(ctx echo.Context, validate *validator.Validate) error {
	if err := ctx.Bind(r); err != nil {
		return errors.Wrap(err, "binding to ToggleItemRequest")
	}
	return validate.Struct(r)
}
