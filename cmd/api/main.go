package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskhub/core/cmd/api/commands"
)

// @title TaskHub API
// @version 1.0
// @description Project and task management API with optimistic concurrency control

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskhub",
		Short: "TaskHub API Server",
		Long:  `TaskHub is a project and task management API with cache-accelerated reads and ETag-based optimistic concurrency.`,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewSessionCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
