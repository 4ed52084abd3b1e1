package app

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/chat-gateway/internal/config"
	"github.com/nguyentranbao-ct/chat-gateway/internal/events"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol"
	"github.com/nguyentranbao-ct/chat-gateway/internal/protocol/loopback"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/blob"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/eventbus"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/memstore"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/chat-gateway/internal/repo/webhook"
	"github.com/nguyentranbao-ct/chat-gateway/internal/store"
	"github.com/nguyentranbao-ct/chat-gateway/internal/usecase"
	"github.com/nguyentranbao-ct/chat-gateway/pkg/crypto"
	"go.uber.org/fx"
)

func newStore(lc fx.Lifecycle, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.New(), nil
	case "mongo":
		creds := crypto.Plaintext()
		if cfg.Auth.CredsKey != "" {
			var err error
			creds, err = crypto.NewCodec(cfg.Auth.CredsKey)
			if err != nil {
				return nil, fmt.Errorf("failed to init credentials codec: %w", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		db, err := mongodb.NewConnection(ctx, cfg.Database.URI, cfg.Database.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect mongodb: %w", err)
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return db.EnsureIndexes(ctx)
			},
			OnStop: func(ctx context.Context) error {
				return db.Close(ctx)
			},
		})
		return mongodb.NewStore(db, creds), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newBlobStore(cfg *config.Config) (store.BlobStore, error) {
	switch cfg.Blob.Driver {
	case "memory":
		return memstore.NewBlobStore(cfg.Blob.PublicURL), nil
	case "s3":
		return blob.NewS3Store(cfg.Blob.Region, cfg.Blob.Bucket, cfg.Blob.Endpoint, cfg.Blob.PublicURL)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Blob.Driver)
	}
}

func newDialer(cfg *config.Config) (protocol.Dialer, error) {
	switch cfg.Protocol.Driver {
	case "loopback":
		return loopback.NewDialer(), nil
	default:
		return nil, fmt.Errorf("unknown protocol driver %q", cfg.Protocol.Driver)
	}
}

func newBroker(lc fx.Lifecycle, cfg *config.Config, st store.Store) (events.Broker, error) {
	hooks := webhook.NewSink(st)
	sinks := []events.Sink{hooks}

	var bus *eventbus.Sink
	if cfg.Kafka.Enabled {
		var err error
		bus, err = eventbus.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return nil, fmt.Errorf("failed to init kafka sink: %w", err)
		}
		sinks = append(sinks, bus)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			hooks.Stop()
			if bus != nil {
				return bus.Close()
			}
			return nil
		},
	})

	return events.NewBroker(sinks), nil
}

func newRegistry(
	lc fx.Lifecycle,
	st store.Store,
	blobs store.BlobStore,
	dialer protocol.Dialer,
	broker events.Broker,
) *usecase.Registry {
	registry := usecase.NewRegistry(usecase.SessionDeps{
		Store:  st,
		Blobs:  blobs,
		Dialer: dialer,
		Broker: broker,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			registry.RemoveAll()
			return nil
		},
	})
	return registry
}
