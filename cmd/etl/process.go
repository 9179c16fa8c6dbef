package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/destination-etl/internal/adapter/http"
	"github.com/couchcryptid/destination-etl/internal/domain"
	"github.com/couchcryptid/destination-etl/internal/pipeline"
)

func newProcessCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Score the forecasts, join the listings and publish the master table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.newPipeline(cmd.Context())
			if err != nil {
				return err
			}
			run, err := p.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if ranking := domain.RankCities(run.Result.Rows); len(ranking) > 0 {
				a.logger.Info("best destination", "city", ranking[0].City, "weather_score", ranking[0].WeatherScore)
			}
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run process on a schedule and serve the latest ranking over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := a.newPipeline(ctx, pipeline.WithInterval(a.cfg.PipelineInterval))
			if err != nil {
				return err
			}
			srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, p, a.logger)

			// Start HTTP server.
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("http server error", "error", err)
				}
			}()

			// Start ETL pipeline.
			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := p.Run(ctx); err != nil {
					a.logger.Error("pipeline error", "error", err)
				}
			}()

			<-ctx.Done()
			a.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("http server shutdown error", "error", err)
			}
			select {
			case <-done:
			case <-shutdownCtx.Done():
				a.logger.Warn("pipeline did not stop before the shutdown timeout")
			}

			a.logger.Info("shutdown complete")
			return nil
		},
	}
}
