package cmd

import (
	"log"

	"StudySync/config"
	"StudySync/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据表",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		gormDB, err := db.ConnectGormDB(cfg)
		if err != nil {
			log.Fatalf("无法连接数据库: %v", err)
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrate(gormDB); err != nil {
			log.Fatalf("迁移失败: %v", err)
		}
		log.Println("数据表迁移完成")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
