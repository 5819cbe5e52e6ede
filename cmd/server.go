package cmd

import (
	"StudySync/config"
	"StudySync/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 StudySync 服务器",
	Long:  `启动 StudySync 的 HTTP 服务，提供学习指南与用户 API 以及 /ws 实时推送`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(config.Load())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
