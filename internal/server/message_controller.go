package server

import (
	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
)

type MessageController interface {
	Compose(c echo.Context) error
	ComposeFlow(c echo.Context) error
	ListMessages(c echo.Context) error
	DeleteMessage(c echo.Context) error
	Reschedule(c echo.Context) error
	MediaURL(c echo.Context) error
}

type messageController struct {
	registry *usecase.Registry
}

func NewMessageController(registry *usecase.Registry) MessageController {
	return &messageController{registry: registry}
}

func (mc *messageController) Compose(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, mc.registry, c)
	if err != nil {
		return err
	}

	var req models.ComposeRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	msg, err := sess.Compose(ctx, &req)
	if err != nil {
		return err
	}
	return created(c, msg)
}

func (mc *messageController) ComposeFlow(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, mc.registry, c)
	if err != nil {
		return err
	}

	var req models.ComposeFlowRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	msg, err := sess.ComposeFlow(ctx, &req)
	if err != nil {
		return err
	}
	return created(c, msg)
}

func (mc *messageController) ListMessages(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, mc.registry, c)
	if err != nil {
		return err
	}

	var req models.MessagesRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	messages, cursor, err := sess.Messages(ctx, &req)
	if err != nil {
		return err
	}
	return ok(c, map[string]interface{}{
		"messages": messages,
		"cursor":   cursor,
	})
}

// DeleteMessage cancels a pending scheduled message or revokes a
// delivered one; with for_me=true only the local copy goes away.
func (mc *messageController) DeleteMessage(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, mc.registry, c)
	if err != nil {
		return err
	}

	forMe := c.QueryParam("for_me") == "true"
	msg, err := sess.DeleteMessage(ctx, c.Param("jid"), c.Param("messageID"), forMe)
	if err != nil {
		return err
	}
	return ok(c, msg)
}

func (mc *messageController) Reschedule(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, mc.registry, c)
	if err != nil {
		return err
	}

	var req models.RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	msg, err := sess.Reschedule(ctx, &req)
	if err != nil {
		return err
	}
	return ok(c, msg)
}

func (mc *messageController) MediaURL(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, mc.registry, c)
	if err != nil {
		return err
	}

	url, err := sess.MediaURL(ctx, c.Param("jid"), c.Param("messageID"))
	if err != nil {
		return err
	}
	return ok(c, map[string]string{"url": url})
}
