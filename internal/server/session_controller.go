package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-gateway/internal/server/middleware"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
)

type SessionController interface {
	Health(c echo.Context) error
	GetState(c echo.Context) error
	Connect(c echo.Context) error
	Disconnect(c echo.Context) error
	Logout(c echo.Context) error
	Live(c echo.Context) error
}

type sessionController struct {
	registry *usecase.Registry
}

func NewSessionController(registry *usecase.Registry) SessionController {
	return &sessionController{registry: registry}
}

func (sc *sessionController) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetState reports connection state without creating a session.
func (sc *sessionController) GetState(c echo.Context) error {
	teamID := middleware.TeamID(c)
	sess, ok := sc.registry.Get(teamID)
	if !ok {
		return c.JSON(http.StatusOK, middleware.Response{Success: true, Data: nil})
	}
	return c.JSON(http.StatusOK, middleware.Response{Success: true, Data: sess.State()})
}

func (sc *sessionController) Connect(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, sc.registry, c)
	if err != nil {
		return err
	}
	return ok(c, sess.State())
}

func (sc *sessionController) Disconnect(c echo.Context) error {
	ctx := c.Request().Context()
	teamID := middleware.TeamID(c)
	sess, found := sc.registry.Get(teamID)
	if !found {
		return ok(c, nil)
	}
	if err := sess.Disconnect(ctx); err != nil {
		return err
	}
	sc.registry.Remove(teamID)
	return ok(c, nil)
}

func (sc *sessionController) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, sc.registry, c)
	if err != nil {
		return err
	}
	if err := sess.Logout(ctx); err != nil {
		return err
	}
	sc.registry.Remove(middleware.TeamID(c))
	return ok(c, nil)
}

// Live streams the tenant's events as server-sent events until the
// client goes away.
func (sc *sessionController) Live(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, sc.registry, c)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	events, cancel := sess.Subscribe()
	defer cancel()

	// opening snapshot so clients do not wait for the next transition
	if err := writeEvent(res, "state-sync", sess.State()); err != nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, open := <-events:
			if !open {
				return nil
			}
			if err := writeEvent(res, env.Event, env.Data); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(res *echo.Response, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
