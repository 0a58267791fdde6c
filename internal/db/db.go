package db

import (
	"strings"
	"time"

	"groupomania/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

func dialector(dsn string) (gorm.Dialector, bool) {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), true
	}
	return postgres.Open(dsn), false
}

// Connect 建立数据库连接。"sqlite:" 前缀的 DSN 使用 SQLite（本地开发与测试），
// 其余按 Postgres 处理，并带有简单的重试来等待容器就绪。
func Connect(dsn string) (*gorm.DB, error) {
	dial, isSQLite := dialector(dsn)
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	attempts := 10
	if isSQLite {
		attempts = 1
	}

	var gdb *gorm.DB
	var err error
	for i := 0; i < attempts; i++ {
		gdb, err = gorm.Open(dial, cfg)
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				if isSQLite {
					// 单连接：内存库按连接隔离，且 SQLite 写入本就串行。
					sqlDB.SetMaxOpenConns(1)
					if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
						return nil, err
					}
					return gdb, nil
				}
				sqlDB.SetMaxIdleConns(5)
				sqlDB.SetMaxOpenConns(20)
				sqlDB.SetConnMaxLifetime(time.Hour)
				return gdb, nil
			}
			err = err2
		}
		time.Sleep(time.Duration(500+i*200) * time.Millisecond)
	}
	return nil, err
}

// Migrate 自动迁移全部表结构。
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &models.Post{}, &models.Like{}, &models.Comment{})
}
