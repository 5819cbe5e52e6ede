package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"StudySync/config"
	"StudySync/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioList   bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看头像存储桶的统计信息和文件列表，或删除指定前缀下的所有文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx := context.Background()
		store, err := storage.NewMinioStore(ctx, cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}

		if minioDelete {
			n, err := store.DeletePrefix(ctx, minioPrefix)
			if err != nil {
				log.Fatalf("删除失败: %v", err)
			}
			fmt.Printf("已删除 %s/%s 下的 %d 个文件\n", store.Bucket(), minioPrefix, n)
			return
		}

		if err := store.PrintBucketStatus(ctx, os.Stdout, minioPrefix, minioList); err != nil {
			log.Fatalf("获取存储桶信息失败: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", storage.AvatarPrefix, "按前缀过滤文件或指定要删除的目录")
	minioCmd.Flags().BoolVarP(&minioList, "list", "l", false, "同时列出文件")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除前缀下的所有文件")

	minioCmd.Example = `  # 查看头像目录统计
  studysync minio

  # 列出某个用户的头像
  studysync minio -l -p "avatars/42/"

  # 删除某个用户的全部头像
  studysync minio -d -p "avatars/42/"`
}
