package server

import (
	"shop/internal/config"
	"shop/internal/handler"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(
	e *echo.Echo,
	cfg config.Config,
	authH *handler.AuthHandler,
	productH *handler.ProductHandler,
	adminProductH *handler.AdminProductHandler,
	cartH *handler.CartHandler,
) {
	authH.RegisterRoutes(e, cfg)
	productH.RegisterRoutes(e)
	adminProductH.RegisterRoutes(e, cfg)
	cartH.RegisterRoutes(e, cfg)
}
