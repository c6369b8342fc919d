package commands

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/moneta-app/moneta/internal/domain/import/mapper"
	"github.com/moneta-app/moneta/internal/domain/import/service"
	"github.com/moneta-app/moneta/pkg/config"
	"github.com/moneta-app/moneta/pkg/cron"
)

func newWatchCommand() *cobra.Command {
	var (
		schedule   string
		dateFormat string
		currency   string
		mode       string
		mapPairs   []string
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Periodically import new export files from a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(cmd)

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st, err := openStores(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if schedule == "" {
				schedule = cfg.Watch.Schedule
			}

			opts := service.Options{
				DateFormat:       dateFormat,
				Mode:             mapper.AmountMode(mode),
				CurrencyFallback: currency,
			}
			if opts.CurrencyFallback == "" {
				opts.CurrencyFallback = cfg.Import.CurrencyFallback
			}
			opts.Mapping, err = parseMappingFlags(mapPairs)
			if err != nil {
				return err
			}

			svc := service.New(st.store, logger).WithTemplateStore(st.templates)
			scheduler := cron.NewScheduler(svc, args[0], schedule, opts, logger)

			if cfg.Observability.MetricsEnabled {
				go serveMetrics(cfg.Observability.MetricsPort, logger)
			}

			if err := scheduler.Start(); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			scheduler.RunNow()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			<-scheduler.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression (default from MONETA_WATCH_SCHEDULE)")
	cmd.Flags().StringVar(&dateFormat, "date-format", "", "date pattern, e.g. MM/dd/yyyy (default ISO)")
	cmd.Flags().StringVar(&currency, "currency", "", "fallback currency code (default from MONETA_CURRENCY)")
	cmd.Flags().StringVar(&mode, "mode", "", "amount mode: single or splitColumns (default from mapping)")
	cmd.Flags().StringArrayVar(&mapPairs, "map", nil, "column binding field=Header, repeatable")

	return cmd
}

func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", slog.Any("error", err))
	}
}
