package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/carousell/ct-go/pkg/logger"
	log "github.com/carousell/ct-go/pkg/logger/log_context"
	"github.com/labstack/echo/v4"
	echomdw "github.com/labstack/echo/v4/middleware"
	"github.com/nguyentranbao-ct/chat-gateway/internal/config"
	pkgmdw "github.com/nguyentranbao-ct/chat-gateway/internal/server/middleware"
	"go.uber.org/fx"
)

type Controllers struct {
	fx.In

	Session SessionController
	Chat    ChatController
	Message MessageController
	Note    NoteController
	Flow    FlowController
}

func StartServer(
	lc fx.Lifecycle,
	sd fx.Shutdowner,
	conf *config.Config,
	handler Controllers,
) {
	e := echo.New()
	e.HideBanner = true
	e.Validator = pkgmdw.NewValidator()
	e.HTTPErrorHandler = pkgmdw.ErrorHandler(logger.MustNamed("http"))

	logConfig := pkgmdw.LogRequestConfig{
		Logger: logger.MustNamed("http"),
		Enabled: func(c echo.Context) bool {
			uri := c.Request().RequestURI
			return uri != "/health" && uri != "/metrics"
		},
	}

	e.Use(pkgmdw.Metrics())
	e.Use(pkgmdw.RequestID())
	e.Use(pkgmdw.LogRequest(logConfig))
	e.Use(echomdw.RecoverWithConfig(echomdw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.Errorw(c.Request().Context(), "PANIC RECOVER", "error", err, "stack", string(stack))
			return nil
		},
	}))

	e.GET("/health", handler.Session.Health)

	api := e.Group("/api/v1", pkgmdw.JWTAuth(conf.Auth.JWTSecret))

	api.GET("/state", handler.Session.GetState)
	api.POST("/connect", handler.Session.Connect)
	api.POST("/disconnect", handler.Session.Disconnect)
	api.POST("/logout", handler.Session.Logout)
	api.GET("/live", handler.Session.Live)

	api.GET("/chats", handler.Chat.ListChats)
	api.GET("/chats/:jid", handler.Chat.GetChat)
	api.POST("/chats/:jid/modify", handler.Chat.ModifyChat)
	api.POST("/chats/:jid/read", handler.Chat.MarkRead)
	api.DELETE("/chats/:jid", handler.Chat.DeleteChat)
	api.GET("/contacts/:jid/picture", handler.Chat.ProfilePicture)

	api.GET("/chats/:jid/messages", handler.Message.ListMessages)
	api.POST("/chats/:jid/messages", handler.Message.Compose)
	api.POST("/chats/:jid/flows/:flow", handler.Message.ComposeFlow)
	api.PUT("/chats/:jid/messages/:messageID/schedule", handler.Message.Reschedule)
	api.DELETE("/chats/:jid/messages/:messageID", handler.Message.DeleteMessage)
	api.GET("/chats/:jid/messages/:messageID/media", handler.Message.MediaURL)

	api.POST("/chats/:jid/notes", handler.Note.CreateNote)
	api.PUT("/chats/:jid/notes/:noteId", handler.Note.EditNote)

	api.GET("/flows", handler.Flow.ListFlows)
	api.POST("/flows", handler.Flow.CreateFlow)
	api.PUT("/flows/:id", handler.Flow.EditFlow)
	api.DELETE("/flows/:id", handler.Flow.DeleteFlow)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Infow(ctx, "starting HTTP server", "addr", conf.Server.Addr)
				if err := e.Start(conf.Server.Addr); !errors.Is(err, http.ErrServerClosed) {
					sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}
