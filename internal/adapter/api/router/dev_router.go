package router

import (
	"github.com/labstack/echo/v4"

	"supportdesk/internal/adapter/api/handler"
)

func SetupDevRouter(e *echo.Echo, devTokenHandler *handler.DevTokenHandler, environment string) {
	if environment != "development" {
		return
	}

	e.POST("/_dev/token", devTokenHandler.GenerateToken)
}
