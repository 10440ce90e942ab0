package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/debias/spider/internal/fetcher"
	"github.com/debias/spider/internal/pipeline"
	"github.com/debias/spider/internal/queue"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run the fetch worker",
	Long: `Consumes fetch requests from the work queue, downloads pages over
plain HTTP, stores new content and expands discovered links back into the
fetch queue.`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	finisher := pipeline.NewFinisher(d.meta, d.objects, d.pub, log)
	worker := fetcher.NewWorker(d.targets, d.cache, finisher, d.pub, fetcher.Config{
		UserAgent:       cfg.HTTP.UserAgent,
		RenderThreshold: cfg.Fetcher.RenderThreshold,
		RequestTimeout:  cfg.Fetcher.RequestTimeout,
	}, log)

	consumer := queue.NewConsumer(
		d.broker, queue.SubjectFetch, "fetch-workers",
		cfg.Fetcher.Workers, worker.Handle, log,
	)

	log.Info("fetch worker starting", "workers", cfg.Fetcher.Workers)

	return consumer.Run(ctx)
}
