package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"ingestpipe/internal/acquire"
	"ingestpipe/internal/asr"
	"ingestpipe/internal/config"
	"ingestpipe/internal/deps"
	"ingestpipe/internal/diarize"
	"ingestpipe/internal/dlcache"
	"ingestpipe/internal/domain"
	"ingestpipe/internal/embed"
	"ingestpipe/internal/logging"
	"ingestpipe/internal/pipeline"
	"ingestpipe/internal/profile"
	"ingestpipe/internal/segment"
	"ingestpipe/internal/speaker"
	"ingestpipe/internal/stage"
	"ingestpipe/internal/store"
)

// cliOptions collects every flag value plus the config loaded by the root
// command's PersistentPreRunE.
type cliOptions struct {
	cfg *config.Config

	configPath string
	logLevel   string

	source         string
	channelURL     string
	fromURLs       []string
	fromJSON       string
	localDir       string
	recursive      bool
	patterns       string
	sincePublished string

	limit            int
	limitUnprocessed bool
	newestFirst      bool
	skipShorts       bool
	maxDuration      float64
	dryRun           bool
	force            bool
	noSkipExisting   bool

	proxy       string
	cookiesFile string

	ioWorkers  int
	asrWorkers int
	dbWorkers  int

	workDir  string
	cacheDir string
}

// runIngest wires every collaborator from config and flags and drives one
// pipeline.Orchestrator.Run, grounded on cmd/spindled/main.go's
// config→logger→store→workflow-manager startup ordering, translated from
// a long-running daemon into a single batch invocation.
func runIngest(ctx context.Context, cmd *cobra.Command, opts *cliOptions) error {
	cfg := opts.cfg
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	applyFlagOverrides(cfg, opts)

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var preflight []stage.Health
	statuses := deps.CheckBinaries(deps.CoreRequirements())
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return fmt.Errorf("required binary %q not found on PATH", s.Command)
		}
		if s.Available {
			preflight = append(preflight, stage.Healthy(s.Name))
		} else {
			preflight = append(preflight, stage.Unhealthy(s.Name, s.Detail))
			logger.Warn("optional dependency unavailable", logging.String("name", s.Name), logging.String("detail", s.Detail))
		}
	}

	workDir := opts.workDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "ingestpipe-work")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	mode := store.ModeDevelopment
	if cfg.ProductionMode {
		mode = store.ModeProduction
	}
	st, err := store.Open(ctx, cfg.DatabaseURL, mode)
	if err != nil {
		preflight = append(preflight, stage.Unhealthy("store", err.Error()))
		logStartupHealth(logger, preflight)
		return fmt.Errorf("open store: %w", err)
	}
	preflight = append(preflight, stage.Healthy("store"))
	defer st.Close()

	profiles := profile.New(cfg.VoicesDir)
	if err := profiles.Load(); err != nil {
		preflight = append(preflight, stage.Unhealthy("voice_profiles", err.Error()))
		logStartupHealth(logger, preflight)
		return fmt.Errorf("load voice profiles: %w", err)
	}
	if _, err := profiles.RequireKnown(cfg.KnownSpeakerName, cfg.AutoBootstrapKnown); err != nil {
		preflight = append(preflight, stage.Unhealthy("voice_profiles", err.Error()))
		logStartupHealth(logger, preflight)
		return fmt.Errorf("resolve known speaker profile: %w", err)
	}
	preflight = append(preflight, stage.Healthy("voice_profiles"))
	logStartupHealth(logger, preflight)

	isLocal := opts.source == "local"

	lister, err := buildLister(opts, cfg)
	if err != nil {
		return fmt.Errorf("build video lister: %w", err)
	}

	acquirer, probe := buildAcquirer(opts, cfg, workDir)

	asrService := asr.NewService(asr.Config{
		WorkDir:      workDir,
		Language:     cfg.WhisperLang,
		DomainPrompt: cfg.DomainPrompt,
		Router: asr.DefaultRouterConfig(
			cfg.WhisperModel, cfg.WhisperDevice, cfg.WhisperCompute,
			cfg.WhisperBeam, cfg.WhisperTemps, float64(cfg.WhisperChunk),
		),
		RefineModelKey:       cfg.WhisperRefineModel,
		RefineBeamSize:       cfg.QARetryBeam,
		RefineTemperatures:   cfg.QARetryTemps,
		LowLogprobThreshold:  cfg.QALowLogprob,
		HighCompressionRatio: cfg.QALowCompression,
		HighNoSpeechProb:     asr.DefaultHighNoSpeechProb,
		RefinementMergeGapS:  asr.DefaultRefinementMergeGapS,
	})

	diarizeService := diarize.NewService(diarize.Config{
		WorkDir:             workDir,
		ModelKey:            cfg.DiarizeModel,
		ClusteringThreshold: cfg.PyannoteClusteringThreshold,
	})

	var gpuLock sync.Mutex
	embed.SetLoader(func() (embed.Model, error) {
		return embed.NewSubprocessModel(embed.SubprocessModelConfig{
			WorkDir:  workDir,
			ModelKey: cfg.EmbeddingModelKey,
		}), nil
	})
	embedModel, err := embed.Acquire()
	if err != nil {
		return fmt.Errorf("acquire embedding model: %w", err)
	}
	embedService := embed.NewService(embedModel, &gpuLock, cfg.BatchSize, logger)

	voiceEmbedder := embed.NewVoiceEmbedder(embed.VoiceEmbedderConfig{WorkDir: workDir})
	speakerCfg := speaker.DefaultConfig(cfg.KnownSpeakerName)
	speakerCfg.KnownMinSim = cfg.KnownMinSim
	speakerCfg.GuestMinSim = cfg.GuestMinSim
	speakerCfg.AttributionMargin = cfg.AttributionMargin
	speakerCfg.OverlapBonus = cfg.OverlapBonus
	speakerCfg.MinClusterDurationS = cfg.MinSpeakerDuration
	speakerService := speaker.NewService(voiceEmbedder, speakerCfg)

	videos, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}

	var since *time.Time
	if opts.sincePublished != "" {
		t, err := time.Parse("2006-01-02", opts.sincePublished)
		if err != nil {
			return fmt.Errorf("--since-published: %w", err)
		}
		since = &t
	}
	videos = pipeline.FilterSincePublished(videos, since)
	videos = pipeline.FilterDuration(videos, opts.skipShorts || cfg.SkipShorts, maxFloat(opts.maxDuration, cfg.MaxAudioDuration))
	if !isLocal {
		videos = pipeline.FilterDuplicateTitles(videos)
	}

	runOpts := pipeline.DefaultRunOptions()

	if !isLocal && probe != nil {
		videos = pipeline.Prefilter(ctx, videos, probe, runOpts)
	}

	runOpts.ForceReprocess = opts.force
	runOpts.SkipExisting = !opts.noSkipExisting && !opts.force
	runOpts.LimitUnprocessed = opts.limitUnprocessed
	runOpts.Limit = opts.limit
	runOpts.DryRun = opts.dryRun
	runOpts.KnownSpeakerName = cfg.KnownSpeakerName
	runOpts.StoreKnownOnly = cfg.EmbeddingStorageStrategy == "known_only"
	runOpts.EmbedKnownOnly = cfg.EmbeddingStorageStrategy == "known_only"
	runOpts.Attribution = segment.AttributionConfig{
		KnownName:    cfg.KnownSpeakerName,
		KnownMinSim:  cfg.KnownMinSim,
		GuestMinSim:  cfg.GuestMinSim,
		OverlapBonus: cfg.OverlapBonus,
	}
	runOpts.IsLocalSource = isLocal
	runOpts.LockPath = filepath.Join(workDir, ".ingest.lock")

	workers := pipeline.DefaultWorkerConfig()
	if opts.ioWorkers > 0 {
		workers.IOWorkers = opts.ioWorkers
	} else {
		workers.IOWorkers = cfg.IOWorkers
	}
	if opts.asrWorkers > 0 {
		workers.ASRWorkers = opts.asrWorkers
	} else {
		workers.ASRWorkers = cfg.ASRWorkers
	}
	if opts.dbWorkers > 0 {
		workers.DBWorkers = opts.dbWorkers
	} else {
		workers.DBWorkers = cfg.DBWorkers
	}
	workers.DownloadSemaphore = cfg.YTDLPDownloadSemaphore

	orchestrator := pipeline.New(pipeline.Deps{
		Acquirer:          acquirer,
		ASR:               asrService,
		Diarizer:          diarizeService,
		Speaker:           speakerService,
		Embedder:          embedService,
		Store:             st,
		Profiles:          profiles,
		Logger:            logger,
		Workers:           workers,
		Run:               runOpts,
		EmbeddingModelKey: cfg.EmbeddingModelKey,
	})

	start := time.Now()
	stats, err := orchestrator.Run(ctx, videos)
	elapsed := time.Since(start)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), pipeline.RenderSummary(stats, elapsed))
	return nil
}

// logStartupHealth reports the preflight check results gathered before the
// orchestrator starts (binary availability, store connectivity, voice
// profile load) as one structured log line per component.
func logStartupHealth(logger *slog.Logger, checks []stage.Health) {
	for _, h := range checks {
		if h.Ready {
			logger.Info("startup check ok", logging.String("component", h.Name))
			continue
		}
		logger.Warn("startup check failed", logging.String("component", h.Name), logging.String("detail", h.Detail))
	}
}

func applyFlagOverrides(cfg *config.Config, opts *cliOptions) {
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.proxy != "" {
		cfg.YTDLPProxy = opts.proxy
	}
}

func maxFloat(override, fallback float64) float64 {
	if override > 0 {
		return override
	}
	return fallback
}

// buildLister dispatches on --source, falling back to --from-json/
// --from-url as fixed input lists regardless of source kind, matching
// ingest_youtube.py's VideoListerConfig precedence (explicit file/URL
// input always wins over a live channel listing).
func buildLister(opts *cliOptions, cfg *config.Config) (pipeline.VideoLister, error) {
	if opts.fromJSON != "" {
		raw, err := os.ReadFile(opts.fromJSON)
		if err != nil {
			return nil, fmt.Errorf("read --from-json: %w", err)
		}
		var videos []domain.VideoDescriptor
		if err := json.Unmarshal(raw, &videos); err != nil {
			return nil, fmt.Errorf("parse --from-json: %w", err)
		}
		return pipeline.StaticLister{Videos: videos}, nil
	}
	if len(opts.fromURLs) > 0 {
		return pipeline.NewURLLister("yt-dlp", opts.fromURLs), nil
	}

	switch opts.source {
	case "api":
		if opts.channelURL == "" {
			return nil, fmt.Errorf("--channel-url required for --source=api")
		}
		return pipeline.NewAPIChannelLister(pipeline.APIListerConfig{
			APIKey:     cfg.YouTubeAPIKey,
			ChannelURL: opts.channelURL,
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
		}), nil
	case "yt-dlp":
		if opts.channelURL == "" {
			return nil, fmt.Errorf("--channel-url required for --source=yt-dlp")
		}
		return pipeline.NewYTDLPChannelLister(pipeline.YTDLPListerConfig{
			ChannelURL:  opts.channelURL,
			Proxy:       opts.proxy,
			CookiesFile: opts.cookiesFile,
		}), nil
	case "local":
		if opts.localDir == "" {
			return nil, fmt.Errorf("--local-dir required for --source=local")
		}
		var patterns []string
		if opts.patterns != "" {
			patterns = strings.Split(opts.patterns, ",")
		}
		return pipeline.NewLocalFileLister(pipeline.LocalFileListerConfig{
			Dir:         opts.localDir,
			Patterns:    patterns,
			Recursive:   opts.recursive,
			NewestFirst: opts.newestFirst || cfg.NewestFirst,
		}), nil
	default:
		return nil, fmt.Errorf("unknown --source %q: want api, yt-dlp, or local", opts.source)
	}
}

// buildAcquirer constructs the C2 Acquirer matching the chosen source kind,
// wrapping it in the download cache when --cache-dir is set, and returns an
// accessibility probe for the pre-filter pass (nil for the local source,
// which never needs one).
func buildAcquirer(opts *cliOptions, cfg *config.Config, workDir string) (pipeline.Acquirer, pipeline.AccessibilityProbe) {
	if opts.source == "local" {
		return acquire.NewLocalService(acquire.LocalConfig{
			SourceDir: opts.localDir,
			WorkDir:   workDir,
		}), nil
	}

	svc := acquire.NewService(acquire.Config{
		WorkDir:           workDir,
		Proxy:             opts.proxy,
		CookiesFile:       opts.cookiesFile,
		StoreAudioLocally: cfg.StoreAudioLocally,
		AudioStorageDir:   cfg.AudioStorageDir,
	})

	var acquirer pipeline.Acquirer = svc
	if opts.cacheDir != "" {
		cache, err := dlcache.Open(opts.cacheDir, 30*24*time.Hour)
		if err == nil {
			acquirer = acquire.NewCachingAcquirer(svc.Acquire, cache)
		}
	}

	return acquirer, svc.Probe
}
