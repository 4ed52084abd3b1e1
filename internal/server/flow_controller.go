package server

import (
	"github.com/labstack/echo/v4"
	"github.com/nguyentranbao-ct/chat-gateway/internal/models"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
)

type FlowController interface {
	ListFlows(c echo.Context) error
	CreateFlow(c echo.Context) error
	EditFlow(c echo.Context) error
	DeleteFlow(c echo.Context) error
}

type flowController struct {
	registry *usecase.Registry
}

func NewFlowController(registry *usecase.Registry) FlowController {
	return &flowController{registry: registry}
}

func (fc *flowController) ListFlows(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, fc.registry, c)
	if err != nil {
		return err
	}

	var req models.FlowListRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	page, err := sess.Flows().List(ctx, &req)
	if err != nil {
		return err
	}
	return ok(c, page)
}

func (fc *flowController) CreateFlow(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, fc.registry, c)
	if err != nil {
		return err
	}

	var req models.FlowCreateRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	flow, err := sess.Flows().Create(ctx, &req)
	if err != nil {
		return err
	}
	return created(c, flow)
}

func (fc *flowController) EditFlow(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, fc.registry, c)
	if err != nil {
		return err
	}

	var req models.FlowEditRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	flow, err := sess.Flows().Edit(ctx, &req)
	if err != nil {
		return err
	}
	return ok(c, flow)
}

func (fc *flowController) DeleteFlow(c echo.Context) error {
	ctx := c.Request().Context()
	sess, err := session(ctx, fc.registry, c)
	if err != nil {
		return err
	}

	if err := sess.Flows().Delete(ctx, c.Param("id")); err != nil {
		return err
	}
	return ok(c, nil)
}
