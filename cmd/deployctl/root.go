package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/deploy"
	"inferd/internal/hosting"
	"inferd/internal/ledger"
	"inferd/internal/objstore"
)

// newRootCmd builds `deployctl [deploy]` and `deployctl history`.
func newRootCmd(out io.Writer) *cobra.Command {
	var configPath, archive, logLevel string
	load := func() (config.Deploy, error) {
		cfg, err := config.LoadDeploy(configPath)
		if err != nil {
			return cfg, err
		}
		if archive != "" {
			cfg.Archive = archive
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		return cfg, nil
	}

	deployRun := func(cmd *cobra.Command, args []string) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		log := newLogger(cfg.LogLevel, os.Stderr)
		res, err := runDeploy(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Model deployed successfully to endpoint: %s\n", res.Endpoint.Name)
		return nil
	}

	root := &cobra.Command{
		Use:           "deployctl",
		Short:         "Upload a model archive and deploy it to a managed inference endpoint",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          deployRun,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults DEPLOYCTL_LOG_LEVEL or info)")
	root.Flags().StringVar(&archive, "archive", "", "Model archive to upload (default model.tar.gz)")

	deployCmd := &cobra.Command{
		Use:     "deploy",
		Short:   "Upload the archive and provision the endpoint (default command)",
		Example: "  deployctl deploy --archive model.tar.gz",
		Args:    cobra.NoArgs,
		RunE:    deployRun,
	}
	deployCmd.Flags().StringVar(&archive, "archive", "", "Model archive to upload (default model.tar.gz)")

	var limit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded deployment runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			db, err := ledger.Open(cfg.LedgerPath)
			if err != nil {
				return err
			}
			defer db.Close()
			runs, err := db.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printRuns(out, runs)
		},
	}
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 = all)")

	root.AddCommand(deployCmd, historyCmd)
	return root
}

// runDeploy wires the AWS clients and the ledger into a Launcher and runs it.
func runDeploy(ctx context.Context, cfg config.Deploy, log zerolog.Logger) (deploy.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return deploy.Result{}, fmt.Errorf("load aws config: %w", err)
	}
	var rec deploy.Recorder
	if cfg.LedgerPath != "" {
		db, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.LedgerPath).Msg("ledger unavailable; run will not be recorded")
		} else {
			defer db.Close()
			rec = db
		}
	}
	host := hosting.NewSageMakerFromConfig(awsCfg, cfg.WaitTimeout.Std(), log.With().Str("component", "sagemaker").Logger())
	l := deploy.NewLauncher(cfg, objstore.NewS3FromConfig(awsCfg), host, rec, log)
	return l.Run(ctx)
}

func printRuns(w io.Writer, runs []ledger.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tSTATUS\tENDPOINT\tARTIFACT\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Format(time.RFC3339),
			r.Duration().Round(time.Second),
			r.Status,
			r.Endpoint,
			r.ArtifactURL,
			oneLine(r.Error),
		)
	}
	return tw.Flush()
}

// oneLine flattens s and cuts it to 80 runes.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > 80 {
		s = string(r[:77]) + "..."
	}
	return s
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}).
		Level(lvl).With().Timestamp().Logger()
}
