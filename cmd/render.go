package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/debias/spider/internal/pipeline"
	"github.com/debias/spider/internal/queue"
	"github.com/debias/spider/internal/renderer"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Run the render worker",
	Long: `Consumes render requests from the work queue and renders each page
in a headless browser so script-driven content becomes visible to the
pipeline.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
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

	browser, err := renderer.NewBrowser(cfg.Renderer.BrowserBin)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := browser.Close(); closeErr != nil {
			log.Warn("failed to close browser", "error", closeErr)
		}
	}()

	finisher := pipeline.NewFinisher(d.meta, d.objects, d.pub, log)
	worker := renderer.NewWorker(d.targets, d.cache, browser, finisher, log)

	consumer := queue.NewConsumer(
		d.broker, queue.SubjectRender, "render-workers",
		cfg.Renderer.Workers, worker.Handle, log,
	)

	log.Info("render worker starting", "workers", cfg.Renderer.Workers)

	return consumer.Run(ctx)
}
