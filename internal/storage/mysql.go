package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"job-match-go/internal/config"
	"job-match-go/internal/storage/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("job-match-go/storage/mysql")

type gormSpanKey struct{}

// GormTracingPlugin GORM插件，为每次数据库操作生成OpenTelemetry span
type GormTracingPlugin struct {
	tracer   trace.Tracer
	dbName   string
	skipHook bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 在GORM操作前开启span并挂到Statement上下文
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.skipHook && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 在GORM操作后补充属性并结束span
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 记录不存在属于正常业务分支，不标记为span错误
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(attribute.String("error.type", "database_error"))
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:   mysqlTracer,
		dbName:   dbName,
		skipHook: true,
	}
}

// MySQL 提供简历/岗位读模型的关系数据库访问
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移读模型表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
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
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{db: db, cfg: cfg}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 自动迁移两个读模型表。
// 迁移期间静默SQL日志，避免启动时刷屏。
func (m *MySQL) autoMigrateSchema() error {
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
	if err := silentDB.AutoMigrate(
		&models.Resume{},
		&models.Job{},
	); err != nil {
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

// FindResumeByID 通过简历ID获取简历记录，未找到时返回 gorm.ErrRecordNotFound
func (m *MySQL) FindResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	if err := m.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&resume).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

// FindResumeByVectorID 通过向量ID反查简历记录
func (m *MySQL) FindResumeByVectorID(ctx context.Context, vectorID string) (*models.Resume, error) {
	var resume models.Resume
	if err := m.db.WithContext(ctx).Where("vector_id = ?", vectorID).First(&resume).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

// FindPrimaryResumeByUser 获取用户的主简历
func (m *MySQL) FindPrimaryResumeByUser(ctx context.Context, userID string) (*models.Resume, error) {
	var resume models.Resume
	if err := m.db.WithContext(ctx).
		Where("user_id = ? AND is_primary = ?", userID, true).
		First(&resume).Error; err != nil {
		return nil, err
	}
	return &resume, nil
}

// FindJobByID 通过岗位ID获取岗位记录
func (m *MySQL) FindJobByID(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// UpsertJob 按调用方提供的JobID插入或更新岗位记录。
// JobID 永远由调用方提供，本层不生成ID。
func (m *MySQL) UpsertJob(ctx context.Context, job *models.Job) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.UpsertJob",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.String("db.operation", "INSERT_ON_DUPLICATE"),
		attribute.String("db.sql.table", "jobs"),
		attribute.String("job.id", job.JobID),
	)

	if job.JobID == "" {
		err := fmt.Errorf("job_id不能为空")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err := m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "employer", "description", "requirements_json",
				"responsibilities", "location", "salary_range", "employment_type",
			}),
		}).Create(job).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SetPrimaryResume 将指定简历设为用户的主简历。
// 在事务中先清掉该用户其余简历的主标记，保证主简历至多一份。
func (m *MySQL) SetPrimaryResume(ctx context.Context, userID, resumeID string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Resume{}).
			Where("user_id = ? AND resume_id <> ?", userID, resumeID).
			Update("is_primary", false).Error; err != nil {
			return fmt.Errorf("清除旧主简历标记失败: %w", err)
		}

		result := tx.Model(&models.Resume{}).
			Where("resume_id = ? AND user_id = ?", resumeID, userID).
			Update("is_primary", true)
		if result.Error != nil {
			return fmt.Errorf("设置主简历失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
