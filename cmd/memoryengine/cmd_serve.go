package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memoryengine/memoryengine/internal/httpapi"
)

var serveShutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP contract adapter",
	Long: `Expose bank/memory/recall/consolidate/operation routes over HTTP,
listening on rest_api.host:rest_api.port from config. This is a thin
contract shim over the same operations the CLI runs, not a product
front end.`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
}

func runServe() {
	a := mustApp()
	server := httpapi.NewServer(a)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := server.StartWithContext(ctx, serveShutdownTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
