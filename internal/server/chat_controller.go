package server

import (
	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
)

type ChatController interface {
	ListChats(c echo.Context) error
	GetChat(c echo.Context) error
	ModifyChat(c echo.Context) error
	MarkRead(c echo.Context) error
	DeleteChat(c echo.Context) error
	ProfilePicture(c echo.Context) error
}

type chatController struct {
	registry *usecase.Registry
}

func NewChatController(registry *usecase.Registry) ChatController {
	return &chatController{registry: registry}
}

func (cc *chatController) ListChats(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, cc.registry, c)
	if err != nil {
		return err
	}

	var req models.ChatListRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	chats, cursor := sess.Chats(&req)
	return ok(c, map[string]interface{}{
		"chats":  chats,
		"cursor": cursor,
	})
}

func (cc *chatController) GetChat(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, cc.registry, c)
	if err != nil {
		return err
	}

	chat, err := sess.Chat(ctx, c.Param("jid"))
	if err != nil {
		return err
	}
	return ok(c, chat)
}

func (cc *chatController) ModifyChat(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, cc.registry, c)
	if err != nil {
		return err
	}

	var req models.ChatModifyRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := sess.ModifyChat(ctx, &req); err != nil {
		return err
	}
	return ok(c, nil)
}

func (cc *chatController) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, cc.registry, c)
	if err != nil {
		return err
	}

	read := c.QueryParam("read") != "false"
	if err := sess.MarkRead(ctx, c.Param("jid"), read); err != nil {
		return err
	}
	return ok(c, nil)
}

func (cc *chatController) DeleteChat(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, cc.registry, c)
	if err != nil {
		return err
	}

	if err := sess.DeleteChat(ctx, c.Param("jid")); err != nil {
		return err
	}
	return ok(c, nil)
}

func (cc *chatController) ProfilePicture(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, cc.registry, c)
	if err != nil {
		return err
	}

	url, err := sess.ProfilePicture(ctx, c.Param("jid"))
	if err != nil {
		return err
	}
	return ok(c, map[string]string{"url": url})
}
