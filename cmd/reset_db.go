package cmd

import (
	"context"
	"fmt"
	"log"

	"StudySync/config"
	"StudySync/db"
	"StudySync/repository"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetDBCmd = &cobra.Command{
	Use:   "reset-db",
	Short: "清空所有用户和学习指南",
	Long:  `删除数据库中的全部学习指南与用户，用于开发和测试环境。必须加 --yes 确认。`,
	Run: func(cmd *cobra.Command, args []string) {
		if !resetConfirmed {
			log.Fatal("此操作会删除全部数据，请加 --yes 确认")
		}

		cfg := config.Load()
		gormDB, err := db.ConnectGormDB(cfg)
		if err != nil {
			log.Fatalf("无法连接数据库: %v", err)
		}
		defer db.CloseGormDB()

		ctx := context.Background()
		guides, err := repository.NewGormStudyGuideRepository(gormDB).DeleteAll(ctx)
		if err != nil {
			log.Fatalf("删除学习指南失败: %v", err)
		}
		users, err := repository.NewGormUserRepository(gormDB).DeleteAll(ctx)
		if err != nil {
			log.Fatalf("删除用户失败: %v", err)
		}
		fmt.Printf("已删除 %d 个学习指南和 %d 个用户\n", guides, users)
	},
}

func init() {
	rootCmd.AddCommand(resetDBCmd)
	resetDBCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "确认删除全部数据")
}
