package db

import (
	"fmt"
	"time"

	"StudySync/config"
	"StudySync/logger"
	"StudySync/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormDB 全局数据库连接
var GormDB *gorm.DB

// DSN 根据配置生成 MySQL 连接串
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

// ConnectGormDB 建立 GORM 数据库连接并配置连接池
func ConnectGormDB(cfg *config.Config) (*gorm.DB, error) {
	logMode := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(logMode),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	GormDB = db
	logger.Info("数据库连接成功", logger.String("host", cfg.DBHost), logger.String("database", cfg.DBName))
	return db, nil
}

// CloseGormDB 关闭数据库连接
func CloseGormDB() error {
	if GormDB == nil {
		return nil
	}
	sqlDB, err := GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Models 需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.StudyGuide{},
		&model.StudyGuideSubject{},
		&model.StudyGuideContributor{},
		&model.StudyGuideUpvote{},
	}
}

// AutoMigrate 自动迁移全部模型
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("GORM database not initialized")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	logger.Info("数据表迁移完成")
	return nil
}
