package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/debias/spider/internal/domain"
	"github.com/debias/spider/internal/queue"
	"github.com/debias/spider/internal/urlutil"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Publish fetch requests for every configured target root",
	Long: `Publishes one fetch request per configured target root URL. Run it
once to start a crawl, or on a schedule to re-crawl after the dedup window
expires.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	broker, err := queue.Connect(cfg.Nats.DSN, log)
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := broker.EnsureStream(); err != nil {
		return err
	}

	for _, target := range cfg.Targets {
		normalized, err := urlutil.Normalize(target.RootURL)
		if err != nil {
			return err
		}
		if err := broker.Publish(ctx, queue.SubjectFetch, domain.FetchRequest{URL: normalized}); err != nil {
			return err
		}
		log.Info("seeded target", "target", target.ID, "url", normalized)
	}

	return nil
}
