package storage

import (
	"context"
	"fmt"
	"log"
	"strings"

	"job-match-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 消息队列
	RabbitMQ *RabbitMQ

	// 向量数据库
	Qdrant *Qdrant

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 创建存储管理器。
// 单个后端初始化失败只记警告，全部失败才返回错误，
// 便于本地只起部分依赖时调试。
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	// 初始化RabbitMQ（如果配置了）
	if cfg.RabbitMQ.URL != "" {
		log.Printf("初始化RabbitMQ...")
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Printf("警告: 初始化RabbitMQ失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	// 初始化Qdrant（如果配置了）
	if cfg.Qdrant.Endpoint != "" {
		log.Printf("初始化Qdrant...")
		storage.Qdrant, err = NewQdrant(&cfg.Qdrant)
		if err != nil {
			log.Printf("警告: 初始化Qdrant失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("Qdrant: %v", err))
		}
	}

	// 初始化MySQL（如果配置了）
	if cfg.MySQL.Host != "" {
		log.Printf("初始化MySQL...")
		storage.MySQL, err = NewMySQL(&cfg.MySQL)
		if err != nil {
			log.Printf("警告: 初始化MySQL失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("MySQL: %v", err))
		}
	}

	// 初始化Redis（如果配置了）
	if cfg.Redis.Address != "" {
		log.Printf("初始化Redis at %s...", cfg.Redis.Address)
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Printf("Redis未配置, 跳过初始化.")
	}

	if storage.RabbitMQ == nil && storage.Qdrant == nil && storage.MySQL == nil && storage.Redis == nil {
		return nil, fmt.Errorf("所有存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}

	if len(initErrors) > 0 {
		log.Printf("警告: 以下存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}

	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Printf("关闭MySQL连接失败: %v", err)
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	// Qdrant走HTTP短连接，不需要显式Close
}
