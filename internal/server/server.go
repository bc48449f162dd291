package server

import (
	"shop/internal/config"
	"shop/internal/handler"
	"shop/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func Start(
	addr string,
	cfg config.Config,
	authH *handler.AuthHandler,
	productH *handler.ProductHandler,
	adminProductH *handler.AdminProductHandler,
	cartH *handler.CartHandler,
) error {
	e := echo.New()

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	// ゲスト識別用のセッショントークン
	e.Use(middleware.Session(cfg))

	RegisterRoutes(e, cfg, authH, productH, adminProductH, cartH)

	return e.Start(addr)
}
