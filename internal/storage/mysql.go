package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"jobgenius-go/internal/config"
	"jobgenius-go/internal/storage/models"

	"github.com/gofrs/uuid/v5"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	// 构建DSN，添加超时设置
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	// 配置GORM日志级别
	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	case 4:
		logLevel = logger.Info
	default:
		logLevel = logger.Warn
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{
		db:  db,
		cfg: cfg,
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	currentLogger := m.db.Logger

	// 迁移期间关闭SQL日志打印
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.User{},
		&models.Resume{},
	)

	m.db = m.db.Session(&gorm.Session{Logger: currentLogger})

	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// GetUserByExternalID 按外部标识查找用户
// 未找到时返回gorm.ErrRecordNotFound
func (m *MySQL) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	err := m.db.WithContext(ctx).Where("external_id = ?", externalID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser 创建用户
func (m *MySQL) CreateUser(ctx context.Context, user *models.User) error {
	return m.db.WithContext(ctx).Create(user).Error
}

// GetOrCreateUserByExternalID 按外部标识定位用户，首次出现时惰性建档
// 鉴权层已经校验过密钥，走到这里的外部标识都是可信的
func (m *MySQL) GetOrCreateUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, err := m.GetUserByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成用户ID失败: %w", err)
	}
	created := &models.User{
		UserID:     userID.String(),
		ExternalID: externalID,
	}
	if err := m.CreateUser(ctx, created); err != nil {
		// 并发首次请求可能撞上唯一索引，回读一次
		if existing, readErr := m.GetUserByExternalID(ctx, externalID); readErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return created, nil
}

// CreateResume 插入一条简历记录
func (m *MySQL) CreateResume(ctx context.Context, resume *models.Resume) error {
	return m.db.WithContext(ctx).Create(resume).Error
}

// ListResumesByUser 按用户列出简历，新的在前
func (m *MySQL) ListResumesByUser(ctx context.Context, userID string) ([]models.Resume, error) {
	var resumes []models.Resume
	err := m.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&resumes).Error
	if err != nil {
		return nil, err
	}
	return resumes, nil
}

// GetResume 按ID获取简历，限定所有者
// 他人的简历与不存在的简历一样返回gorm.ErrRecordNotFound
func (m *MySQL) GetResume(ctx context.Context, resumeID, userID string) (*models.Resume, error) {
	var resume models.Resume
	err := m.db.WithContext(ctx).
		Where("resume_id = ? AND user_id = ?", resumeID, userID).
		First(&resume).Error
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// DeleteResume 按ID删除简历，限定所有者
func (m *MySQL) DeleteResume(ctx context.Context, resumeID, userID string) error {
	result := m.db.WithContext(ctx).
		Where("resume_id = ? AND user_id = ?", resumeID, userID).
		Delete(&models.Resume{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetPrimaryResume 将指定简历设为主简历
// 清除该用户所有主标记和设置新主简历在同一事务内完成，保证最多一份主简历
func (m *MySQL) SetPrimaryResume(ctx context.Context, resumeID, userID string) (*models.Resume, error) {
	var resume models.Resume

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Resume{}).
			Where("user_id = ? AND is_primary = ?", userID, true).
			Update("is_primary", false).Error; err != nil {
			return fmt.Errorf("清除现有主简历标记失败: %w", err)
		}

		result := tx.Model(&models.Resume{}).
			Where("resume_id = ? AND user_id = ?", resumeID, userID).
			Update("is_primary", true)
		if result.Error != nil {
			return fmt.Errorf("设置主简历标记失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Where("resume_id = ?", resumeID).First(&resume).Error
	})
	if err != nil {
		return nil, err
	}

	return &resume, nil
}
