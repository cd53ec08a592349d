package echoapi

import (
	"github.com/labstack/echo/v4"
)

const contextUserIDKey = "userID"

// userMiddleware rejects tokens without a subject and stores the user id in the context.
func userMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			userID, err := contextUserID(ctx)
			if err != nil {
				return err
			}
			ctx.Set(contextUserIDKey, userID)
			return next(ctx)
		}
	}
}

func getUserID(ctx echo.Context) string {
	id, _ := ctx.Get(contextUserIDKey).(string)
	return id
}
