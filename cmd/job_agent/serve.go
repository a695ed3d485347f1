package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-matcher/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes users, profile sessions and job
evaluations over REST. Sessions and runs are checkpointed in PostgreSQL so any
instance can resume them.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides server.port)")
	_ = v.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := openServices(ctx, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	checkpoints := svc.db.Checkpoints()
	builder, err := svc.newBuilder(checkpoints)
	if err != nil {
		return err
	}
	evals, err := svc.newEvaluator(checkpoints)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Port:      appConfig.Server.Port,
		RateLimit: appConfig.Server.RateLimit,
		RateBurst: appConfig.Server.RateBurst,
	}, server.Dependencies{
		Profiles:    builder,
		Evaluations: evals,
		Users:       svc.db,
		Pinger:      svc.db,
	}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
