package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearsaylabs/hearsay/cmd/hearsay/internal/config"
	"github.com/hearsaylabs/hearsay/pkg/cli"
	"github.com/hearsaylabs/hearsay/pkg/hearsay"
	"github.com/hearsaylabs/hearsay/pkg/identify"
	"github.com/hearsaylabs/hearsay/pkg/kv"
	"github.com/hearsaylabs/hearsay/pkg/profile"
	"github.com/hearsaylabs/hearsay/pkg/recognizer"
	"github.com/hearsaylabs/hearsay/pkg/session"
)

var (
	// Global flags
	verbose      bool
	configDir    string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "hearsay",
	Short: "Speaker calibration and live transcription analytics",
	Long: `hearsay - voice calibration, live transcription and session analytics.

Calibrate a speaker's voice once, then run live transcription sessions
where finalized transcripts are attributed to calibrated speakers and
aggregated into per-session statistics.

Configuration lives in the OS config directory:
  macOS:   ~/Library/Application Support/hearsay/config.yaml
  Linux:   ~/.config/hearsay/config.yaml
  Windows: %AppData%/hearsay/config.yaml

Without provider credentials, speaker identification falls back to local
voice feature matching; live sessions require a transcription api_key.

Examples:
  # Register a speaker from a WAV sample
  hearsay calibrate --user alice --name "Alice" --audio alice.wav

  # Run a live session over a recorded file and show the analysis
  hearsay session run --audio meeting.wav

  # Re-print the analysis of a past session
  hearsay analysis <session-id> --output report`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "configuration directory (default: OS config dir)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "yaml", "output format: yaml, json, report")
}

// app bundles the wired core for one command invocation.
type app struct {
	cfg  *config.Config
	core *hearsay.Core
	kv   kv.Store
}

func (a *app) close() {
	if a.kv != nil {
		a.kv.Close()
	}
}

// newApp loads the configuration and wires the stores, provider clients
// and core. The caller must close the returned app.
func newApp() (*app, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var cfg *config.Config
	var err error
	if configDir != "" {
		cfg, err = config.LoadFrom(configDir)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	store, err := kv.NewBadger(kv.BadgerOptions{Dir: cfg.DataDir})
	if err != nil {
		return nil, err
	}

	var speakerClient recognizer.ProfileClient
	if cfg.Speaker.APIKey != "" {
		speakerClient = recognizer.NewSpeakerID(cfg.Speaker.Endpoint, cfg.Speaker.APIKey)
	}

	var deepgram *recognizer.Deepgram
	if cfg.Transcription.APIKey != "" {
		deepgram = recognizer.NewDeepgram(cfg.Transcription.APIKey)
	}

	profiles := profile.NewStore(store)
	manager := profile.NewManager(profiles, speakerClient)

	var identifier identify.Identifier
	if speakerClient != nil {
		identifier = identify.NewRemote(profiles, speakerClient)
	} else {
		identifier = identify.NewLocal(profiles)
	}

	streamCfg := recognizer.DefaultStreamConfig()
	streamCfg.SampleRate = cfg.SampleRate
	if cfg.Transcription.Model != "" {
		streamCfg.Model = cfg.Transcription.Model
	}
	if cfg.Transcription.Language != "" {
		streamCfg.Language = cfg.Transcription.Language
	}

	var opener recognizer.StreamOpener
	if deepgram != nil {
		opener = deepgram
	}
	sessions := session.NewManager(session.NewStore(store), opener,
		session.WithStreamConfig(streamCfg),
		session.WithIdentifier(identifier),
	)

	var opts []hearsay.Option
	if deepgram != nil {
		opts = append(opts, hearsay.WithTranscriber(deepgram))
	}

	return &app{
		cfg:  cfg,
		core: hearsay.New(manager, sessions, opts...),
		kv:   store,
	}, nil
}

// output prints a command result in the selected format.
func output(result any) error {
	return cli.Output(result, cli.OutputOptions{Format: cli.OutputFormat(outputFormat)})
}
