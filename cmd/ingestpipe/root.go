package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ingestpipe/internal/config"
)

func newRootCommand() *cobra.Command {
	var opts cliOptions

	rootCmd := &cobra.Command{
		Use:           "ingestpipe",
		Short:         "Long-form audio ingestion pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			cfg, _, _, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, &opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&opts.source, "source", "yt-dlp", "Input source kind: api, yt-dlp, or local")
	rootCmd.Flags().StringVar(&opts.channelURL, "channel-url", "", "Channel URL or handle to list (api/yt-dlp sources)")
	rootCmd.Flags().StringArrayVar(&opts.fromURLs, "from-url", nil, "Explicit video URL to ingest (repeatable)")
	rootCmd.Flags().StringVar(&opts.fromJSON, "from-json", "", "Path to a JSON array of video descriptors")
	rootCmd.Flags().StringVar(&opts.localDir, "local-dir", "", "Directory of already-downloaded media files (local source)")
	rootCmd.Flags().BoolVar(&opts.recursive, "recursive", false, "Recurse into subdirectories for local source")
	rootCmd.Flags().StringVar(&opts.patterns, "file-patterns", "", "Comma-separated file extensions for local source (default: common media types)")
	rootCmd.Flags().StringVar(&opts.sincePublished, "since-published", "", "Only ingest videos published on/after this date (YYYY-MM-DD)")
	rootCmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of videos to process (0 = no limit)")
	rootCmd.Flags().BoolVar(&opts.limitUnprocessed, "limit-unprocessed", false, "Apply --limit only after skip logic, walking further back until satisfied")
	rootCmd.Flags().BoolVar(&opts.newestFirst, "newest-first", false, "List newest videos first")
	rootCmd.Flags().BoolVar(&opts.skipShorts, "skip-shorts", false, "Skip videos under 3 minutes")
	rootCmd.Flags().Float64Var(&opts.maxDuration, "max-duration", 0, "Skip videos longer than this many seconds (0 = no cap)")
	rootCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "List and apply skip logic, then stop without processing")
	rootCmd.Flags().BoolVar(&opts.force, "force", false, "Reprocess videos even if already ingested")
	rootCmd.Flags().BoolVar(&opts.noSkipExisting, "no-skip-existing", false, "Disable the existing-segment-count skip probe")
	rootCmd.Flags().StringVar(&opts.proxy, "proxy", "", "HTTP proxy for yt-dlp")
	rootCmd.Flags().StringVar(&opts.cookiesFile, "cookies", "", "Cookies file for yt-dlp")
	rootCmd.Flags().IntVar(&opts.ioWorkers, "io-workers", 0, "Override I/O worker pool size")
	rootCmd.Flags().IntVar(&opts.asrWorkers, "asr-workers", 0, "Override ASR worker pool size")
	rootCmd.Flags().IntVar(&opts.dbWorkers, "db-workers", 0, "Override DB worker pool size")
	rootCmd.Flags().StringVar(&opts.workDir, "work-dir", "", "Scratch directory for downloaded/transcoded audio")
	rootCmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "Enable the on-disk download cache at this directory")

	rootCmd.AddCommand(newConfigCommand(&opts))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func newConfigCommand(opts *cliOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration and print resolved (redacted) values",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			keys := []string{"database_url", "ytdlp_proxy", "youtube_api_key", "environment", "whisper_model"}
			redacted := cfg.Redacted()
			for _, k := range keys {
				fmt.Fprintf(out, "  %s = %s\n", k, valueOrEmpty(redacted[k]))
			}
			return nil
		},
	})

	return configCmd
}

func valueOrEmpty(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(unset)"
	}
	return v
}
