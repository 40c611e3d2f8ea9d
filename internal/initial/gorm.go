package initial

import (
	"fmt"
	"log"
	"os"
	"time"

	"LeadPulse/internal/config"
	notificationEntity "LeadPulse/internal/modules/notification/domain/entity"
	workspaceEntity "LeadPulse/internal/modules/workspace/domain/entity"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitGorm 连接 MySQL 并自动迁移通知相关表
func InitGorm(conf *config.Config) (*gorm.DB, error) {
	mc := conf.MysqlConfig
	dbName := mc.DatabaseName
	if dbName == "" {
		dbName = conf.AppName
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", mc.User, mc.Password, mc.Host, mc.Port, dbName)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	// TranslateError 让唯一键冲突返回 gorm.ErrDuplicatedKey，标记已读的并发插入依赖它
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&notificationEntity.Notification{},
		&notificationEntity.ReadStatus{},
		&workspaceEntity.WorkspaceMember{},
	); err != nil {
		return nil, err
	}
	return db, nil
}
