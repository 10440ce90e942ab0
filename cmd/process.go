package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/debias/spider/internal/nlp"
	"github.com/debias/spider/internal/processor"
	"github.com/debias/spider/internal/queue"
	"github.com/debias/spider/internal/wordstore"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the process worker",
	Long: `Consumes process requests from the work queue, retrieves stored
documents, runs analysis and persists keyword and topic statistics into the
analytics tables.`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
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

	words := wordstore.New(d.db, log)
	if err := words.Init(ctx); err != nil {
		return err
	}
	if err := words.SyncTargets(ctx, cfg.Targets); err != nil {
		return err
	}

	worker := processor.NewWorker(d.meta, d.objects, nlp.NewHTMLProcessor(), words, log)

	consumer := queue.NewConsumer(
		d.broker, queue.SubjectProcess, "process-workers",
		cfg.Processor.Workers, worker.Handle, log,
	)

	log.Info("process worker starting", "workers", cfg.Processor.Workers)

	return consumer.Run(ctx)
}
