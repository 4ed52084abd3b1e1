package app

import (
	"context"

	"github.com/carousell/ct-go/pkg/logger"
	"github.com/nguyentranbao-ct/chat-gateway/internal/config"
	"github.com/nguyentranbao-ct/chat-gateway/internal/server"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

func Invoke(funcs ...any) *fx.App {
	log := logger.MustNamed("app")
	conf := config.MustLoad()
	log.Debugw("config loaded", log.Reflect("config", conf))
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{
				Logger: log.Unwrap().Desugar(),
			}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Provide(
			newStore,
			newBlobStore,
			newDialer,
			newBroker,
			newRegistry,

			server.NewSessionController,
			server.NewChatController,
			server.NewMessageController,
			server.NewNoteController,
			server.NewFlowController,
		),
		fx.Supply(conf),
		fx.Invoke(warmBoot),
		fx.Invoke(funcs...),
	)
}

// warmBoot revives every auto-reconnect session once the process is up,
// so pending schedules resume without waiting for the first API call.
func warmBoot(lc fx.Lifecycle, conf *config.Config, registry *usecase.Registry) {
	if !conf.Protocol.WarmBoot {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := registry.WarmUp(context.Background()); err != nil {
					logger.MustNamed("app").Errorw("warm boot failed", "error", err)
				}
			}()
			return nil
		},
	})
}
