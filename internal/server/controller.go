package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-gateway/internal/server/middleware"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
)

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, middleware.Response{Success: true, Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, middleware.Response{Success: true, Data: data})
}

// session resolves the caller's session, creating it on first use.
func session(ctx context.Context, registry *usecase.Registry, c echo.Context) (*usecase.Session, error) {
	teamID := middleware.TeamID(c)
	if teamID == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "no team")
	}
	return registry.GetOrCreate(ctx, teamID)
}
