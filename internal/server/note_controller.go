package server

import (
	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/server/middleware"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
)

type NoteController interface {
	CreateNote(c echo.Context) error
	EditNote(c echo.Context) error
}

type noteController struct {
	registry *usecase.Registry
}

func NewNoteController(registry *usecase.Registry) NoteController {
	return &noteController{registry: registry}
}

func (nc *noteController) CreateNote(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, nc.registry, c)
	if err != nil {
		return err
	}

	var req models.NoteCreateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	note, err := sess.CreateNote(ctx, &req, middleware.Author(c))
	if err != nil {
		return err
	}
	return created(c, note)
}

func (nc *noteController) EditNote(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, nc.registry, c)
	if err != nil {
		return err
	}

	var req models.NoteEditRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	note, err := sess.EditNote(ctx, &req, middleware.Author(c))
	if err != nil {
		return err
	}
	return ok(c, note)
}
