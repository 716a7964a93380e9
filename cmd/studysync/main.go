package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"studysync/internal/app"
	"studysync/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "studysync",
		Short: "Real-time tutoring session coordinator",
		Long: `studysync coordinates live learning and tutoring sessions over
websockets: it matches students into their teacher's tutoring session,
fans annotation, progress, content and interaction events out to session
participants, and persists annotations and progress to sqlite.`,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the coordinator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	serve.Flags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")

	root.AddCommand(serve)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		application.Stop()
		return err
	}

	return application.Stop()
}
