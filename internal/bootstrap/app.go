package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lucansdev/project-ai-document/internal/config"
	"github.com/lucansdev/project-ai-document/internal/model"
	databaseClient "github.com/lucansdev/project-ai-document/internal/platform/database"
	"github.com/lucansdev/project-ai-document/internal/platform/logger"
	rabbitmqClient "github.com/lucansdev/project-ai-document/internal/platform/rabbitmq"
	redisClient "github.com/lucansdev/project-ai-document/internal/platform/redis"
	"github.com/lucansdev/project-ai-document/internal/repository"
	"github.com/lucansdev/project-ai-document/internal/worker"
)

// App owns every long-lived dependency. Close releases them in reverse
// construction order.
type App struct {
	Config        *config.Config
	DB            *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	MessageWorker *worker.MessagePersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger.Init(cfg.App.LogLevel, cfg.App.Env)

	app := &App{Config: cfg, StartedAt: time.Now()}
	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initRedis(ctx); err != nil {
		return nil, err
	}
	if err := app.initMessaging(ctx); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"app": cfg.App.Name,
		"env": cfg.App.Env,
	}).Info("dependencies ready")
	return app, nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := databaseClient.New(ctx, a.Config.Database.Driver, a.Config.DSN())
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Conversation{},
		&model.Message{},
		&model.DocumentChunk{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.DB = db
	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	client, err := redisClient.New(ctx, a.Config.Redis.Addr, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return err
	}
	a.Redis = client
	return nil
}

func (a *App) initMessaging(ctx context.Context) error {
	conn, err := rabbitmqClient.New(ctx, a.Config.RabbitMQ.URL)
	if err != nil {
		return err
	}
	a.MQConn = conn

	messageRepo := repository.NewMessageRepository(a.DB)
	a.MessageWorker = worker.NewMessagePersistWorker(conn, messageRepo, a.Config.RabbitMQ.MessagePersistQueue)
	if err := a.MessageWorker.Start(ctx); err != nil {
		return fmt.Errorf("start message worker failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
