package server

import (
	_ "embed"
	"net/http"

	"github.com/labstack/echo/v4"
)

//go:embed assets/chat-widget.js
var widgetJS []byte

func (s *Server) handleWidget(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", widgetJS)
}
