package storage

import (
	"context"
	"fmt"
	"strings"

	"jobgenius-go/internal/config"
	"jobgenius-go/internal/constants"
	"jobgenius-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
// MySQL和MinIO是摄取流程的硬依赖，Redis与RabbitMQ允许缺席
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis

	// 消息队列
	RabbitMQ *RabbitMQ
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	log := logger.With("storage")
	storage := &Storage{}
	var err error
	var initErrors []string

	// 初始化MinIO
	storage.MinIO, err = NewMinIO(&cfg.MinIO)
	if err != nil {
		log.Warn().Err(err).Msg("MinIO initialization failed")
		initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
	}

	// 初始化MySQL（如果配置了）
	if cfg.MySQL.Host != "" {
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			log.Warn().Err(err).Msg("MySQL initialization failed")
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	// 初始化Redis（如果配置了）
	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis initialization failed")
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Info().Msg("Redis not configured, duplicate detection disabled")
	}

	// 初始化RabbitMQ（如果配置了）
	if cfg.RabbitMQ.URL != "" {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Warn().Err(err).Msg("RabbitMQ initialization failed")
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else {
			exchange := cfg.RabbitMQ.ResumeEventsExchange
			if exchange == "" {
				exchange = constants.ResumeEventsExchange
			}
			if err := storage.RabbitMQ.EnsureExchange(exchange, "topic", true); err != nil {
				log.Warn().Err(err).Str("exchange", exchange).Msg("failed to declare resume events exchange")
			}
		}
	} else {
		log.Info().Msg("RabbitMQ not configured, event publishing disabled")
	}

	// 摄取流程缺了数据库或对象存储无法工作
	if storage.MinIO == nil || storage.MySQL == nil {
		storage.Close()
		return nil, fmt.Errorf("核心存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}

	if len(initErrors) > 0 {
		log.Warn().Strs("failed_components", initErrors).Msg("some storage components failed to initialize")
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := logger.With("storage")

	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close RabbitMQ connection")
		}
	}

	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close MySQL connection")
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
	// MinIO客户端无需显式关闭
}
