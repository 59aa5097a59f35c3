package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

// Open 按配置的驱动建立连接池
// TranslateError 打开后唯一约束冲突统一为 gorm.ErrDuplicatedKey
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.ConnString())
	case "postgres":
		dialector = postgres.Open(cfg.ConnString())
	case "sqlite":
		dialector = sqlite.Open(cfg.ConnString())
	default:
		return nil, errors.New(errors.ErrDatabaseConnect,
			fmt.Sprintf("unsupported database driver: %s", cfg.Driver), nil)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.New(errors.ErrDatabaseConnect, "failed to open database", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(errors.ErrDatabaseConnect, "failed to get database instance", err)
	}

	// sqlite 只允许单写连接，否则并发写会得到 SQLITE_BUSY
	if cfg.Driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

// Migrate 自动建表，包括 wallet_requests 上的唯一索引
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.WalletSnapshot{}, &models.WalletRequest{})
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database:", err)
	}
}
