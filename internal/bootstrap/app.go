package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docwell/internal/config"
	"docwell/internal/model"
	mysqlClient "docwell/internal/platform/mysql"
	rabbitmqClient "docwell/internal/platform/rabbitmq"
	redisClient "docwell/internal/platform/redis"
	"docwell/internal/repository"
	"docwell/internal/worker"
)

type App struct {
	Config             *config.Config
	MySQL              *gorm.DB
	Redis              *redis.Client
	MQConn             *amqp.Connection
	ConversationWorker *worker.ConversationPersistWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.Conversation{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	conversationRepo := repository.NewConversationRepository(mysqlDB)
	conversationWorker := worker.NewConversationPersistWorker(mqConn, conversationRepo, cfg.RabbitMQ.ConversationPersistQueue)
	if err := conversationWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start conversation worker failed: %w", err)
	}

	return &App{
		Config:             cfg,
		MySQL:              mysqlDB,
		Redis:              redisCli,
		MQConn:             mqConn,
		ConversationWorker: conversationWorker,
		StartedAt:          time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.ConversationWorker != nil {
		a.ConversationWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
