package cmd

import (
	"fmt"
	"log"
	"os"

	"StudySync/config"
	"StudySync/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studysync",
	Short: "StudySync is a collaborative study guide service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting StudySync server...")
		if err := server.Start(config.Load()); err != nil {
			log.Fatalf("Server exited with error: %v", err)
		}
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
