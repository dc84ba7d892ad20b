package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxloop/voxloop/pkg/ai/llm"
	llmfake "github.com/voxloop/voxloop/pkg/ai/llm/fake"
	"github.com/voxloop/voxloop/pkg/ai/stt"
	sttfake "github.com/voxloop/voxloop/pkg/ai/stt/fake"
	"github.com/voxloop/voxloop/pkg/ai/tts"
	ttsfake "github.com/voxloop/voxloop/pkg/ai/tts/fake"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/capture"
	"github.com/voxloop/voxloop/pkg/host"
	"github.com/voxloop/voxloop/pkg/playback"
	"github.com/voxloop/voxloop/pkg/plugin"
	_ "github.com/voxloop/voxloop/pkg/plugin/openai" // Import to register OpenAI providers
	"github.com/voxloop/voxloop/pkg/session"
	"github.com/voxloop/voxloop/pkg/vad"
	"github.com/voxloop/voxloop/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "voxloop",
	Short: "Voxloop - an interruptible voice assistant pipeline",
	Long: `voxloop runs a spoken-dialogue loop: voice activity detection segments
microphone audio into utterances, each utterance is transcribed and answered,
and the reply is spoken back chunk by chunk so the user can barge in mid-answer.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversation loop against a WAV input file",
	Long: `Replay a 16 kHz mono WAV file through the full pipeline: VAD, segmentation,
transcription, response generation and chunked playback. Synthesized reply
chunks are written as numbered WAV files to the output directory, paced in
real time so barge-in behaves as it would against a live speaker.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		outDir, _ := cmd.Flags().GetString("out")
		sttName, _ := cmd.Flags().GetString("stt")
		llmName, _ := cmd.Flags().GetString("llm")
		ttsName, _ := cmd.Flags().GetString("tts")
		vadName, _ := cmd.Flags().GetString("vad")
		sileroModel, _ := cmd.Flags().GetString("silero-model")
		aggressiveness, _ := cmd.Flags().GetInt("aggressiveness")
		voice, _ := cmd.Flags().GetString("voice")

		logger := setupLogger()
		env := session.LoadEnv()
		if voice == "" {
			voice = env.Voice
		}

		logger.Info("Starting conversation loop",
			slog.String("service", "voxloop"),
			slog.String("version", version.Version),
			slog.String("input", input),
			slog.String("stt", sttName),
			slog.String("llm", llmName),
			slog.String("tts", ttsName),
			slog.String("vad", vadName))

		if input == "" {
			return fmt.Errorf("--input is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		captureCfg := capture.DefaultConfig()
		captureCfg.VAD.Aggressiveness = aggressiveness

		src, err := audio.NewFileSource(input, captureCfg.Audio)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}

		classifier, err := buildClassifier(vadName, sileroModel, aggressiveness, captureCfg.Audio.SampleRate, logger)
		if err != nil {
			return err
		}

		pipeline, err := capture.New(src, classifier, captureCfg, logger)
		if err != nil {
			return fmt.Errorf("failed to create capture pipeline: %w", err)
		}

		transcriber, generator, synth, err := buildProviders(sttName, llmName, ttsName, env)
		if err != nil {
			return err
		}

		sink, err := playback.NewFileSink(outDir, true)
		if err != nil {
			return err
		}
		speaker := playback.New(synth, sink, playback.Config{TTS: tts.Options{Voice: voice}}, logger)

		sessCfg := session.DefaultConfig()
		if env.SystemPrompt != "" {
			sessCfg.SystemPrompt = env.SystemPrompt
		}

		sess := session.New(pipeline, transcriber, generator, speaker, sessCfg, logger)
		go logEvents(sess.Events(), logger)

		if err := sess.Run(ctx); err != nil {
			logger.Error("Session failed", slog.String("error", err.Error()))
			return err
		}

		logger.Info("Session ended",
			slog.String("session_id", sess.ID()),
			slog.Int("chunks_written", sink.Written()))
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the WebSocket frontend bridge",
	Long: `Serve a WebSocket endpoint for a browser frontend. The frontend owns the
microphone and speaker: it sends utterance audio or text as JSON messages and
receives transcripts, replies and state changes back. Synthesized reply audio
is rendered to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		outDir, _ := cmd.Flags().GetString("out")
		sttName, _ := cmd.Flags().GetString("stt")
		llmName, _ := cmd.Flags().GetString("llm")
		ttsName, _ := cmd.Flags().GetString("tts")
		voice, _ := cmd.Flags().GetString("voice")

		logger := setupLogger()
		env := session.LoadEnv()
		if voice == "" {
			voice = env.Voice
		}

		logger.Info("Starting frontend bridge",
			slog.String("service", "voxloop"),
			slog.String("version", version.Version),
			slog.String("addr", addr),
			slog.String("stt", sttName),
			slog.String("llm", llmName),
			slog.String("tts", ttsName))

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		transcriber, generator, synth, err := buildProviders(sttName, llmName, ttsName, env)
		if err != nil {
			return err
		}

		sink, err := playback.NewFileSink(outDir, true)
		if err != nil {
			return err
		}
		speaker := playback.New(synth, sink, playback.Config{TTS: tts.Options{Voice: voice}}, logger)

		sessCfg := session.DefaultConfig()
		if env.SystemPrompt != "" {
			sessCfg.SystemPrompt = env.SystemPrompt
		}

		// The frontend streams utterances over the socket; there is no local
		// microphone to capture from.
		sess := session.New(nullSource{}, transcriber, generator, speaker, sessCfg, logger)

		sessDone := make(chan error, 1)
		go func() { sessDone <- sess.Run(ctx) }()

		h := host.New(sess, transcriber, host.DefaultConfig(), logger)
		mux := http.NewServeMux()
		mux.Handle("/ws", h)

		srv := &http.Server{Addr: addr, Handler: mux}
		srvDone := make(chan error, 1)
		go func() { srvDone <- srv.ListenAndServe() }()

		logger.Info("Listening", slog.String("addr", addr))

		select {
		case err := <-srvDone:
			return err
		case err := <-sessDone:
			if err != nil {
				logger.Error("Session failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	},
}

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Provider plugin commands",
}

var pluginListCmd = &cobra.Command{
	Use:   "list [kind]",
	Short: "List registered provider plugins",
	Long: `List all registered provider plugins or plugins of a specific kind.
Available kinds: stt, llm, tts, vad`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}

		plugins := plugin.List(kind)
		if len(plugins) == 0 {
			if kind == "" {
				fmt.Println("No plugins registered")
			} else {
				fmt.Printf("No plugins registered for kind: %s\n", kind)
			}
			return nil
		}

		fmt.Printf("%-8s %-20s %-10s %s\n", "KIND", "NAME", "VERSION", "DESCRIPTION")
		fmt.Println("------------------------------------------------------------")
		for _, p := range plugins {
			version := p.Version
			if version == "" {
				version = "N/A"
			}
			description := p.Description
			if description == "" {
				description = "No description"
			}
			fmt.Printf("%-8s %-20s %-10s %s\n", p.Kind, p.Name, version, description)
		}
		return nil
	},
}

var pluginDownloadCmd = &cobra.Command{
	Use:   "download-files",
	Short: "Download missing model files for all registered plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()

		plugins := plugin.List("")
		downloadCount := 0
		errorCount := 0
		for _, p := range plugins {
			if p.Downloader == nil {
				continue
			}
			logger.Info("Downloading model files",
				slog.String("kind", p.Kind),
				slog.String("name", p.Name))
			if err := p.Downloader.Download(); err != nil {
				logger.Error("Download failed",
					slog.String("kind", p.Kind),
					slog.String("name", p.Name),
					slog.String("error", err.Error()))
				errorCount++
				continue
			}
			downloadCount++
		}

		if downloadCount == 0 && errorCount == 0 {
			fmt.Println("No model files needed downloading")
		} else {
			fmt.Printf("Downloaded %d model files", downloadCount)
			if errorCount > 0 {
				fmt.Printf(" (%d errors)", errorCount)
			}
			fmt.Println()
		}
		if errorCount > 0 {
			return fmt.Errorf("failed to download %d model files", errorCount)
		}
		return nil
	},
}

// nullSource satisfies session.Source for hosted sessions where the frontend
// owns the microphone. Its nil segment channel blocks forever.
type nullSource struct{}

func (nullSource) Start(ctx context.Context) error  { return nil }
func (nullSource) Stop()                            {}
func (nullSource) Segments() <-chan capture.Segment { return nil }
func (nullSource) Speaking() bool                   { return false }
func (nullSource) SetMuted(bool)                    {}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("VOXLOOP_LOG_FORMAT")
	logLevel := os.Getenv("VOXLOOP_LOG_LEVEL")

	opts := &slog.HandlerOptions{}
	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// Default to JSON
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func buildClassifier(name, sileroModel string, aggressiveness, sampleRate int, logger *slog.Logger) (vad.Classifier, error) {
	switch name {
	case "energy":
		return vad.NewEnergyClassifier(aggressiveness), nil
	case "silero":
		c, err := vad.NewSileroClassifier(sileroModel, sampleRate, 0.5)
		if err != nil {
			return nil, fmt.Errorf("failed to create silero VAD: %w", err)
		}
		logger.Info("Using silero VAD", slog.String("model", sileroModel))
		return c, nil
	default:
		return nil, fmt.Errorf("unknown VAD %q (want energy or silero)", name)
	}
}

func buildProviders(sttName, llmName, ttsName string, env session.Env) (stt.Transcriber, llm.ResponseGenerator, tts.Synthesizer, error) {
	var transcriber stt.Transcriber
	if sttName == "fake" {
		transcriber = sttfake.NewTranscriber("Hello, can you hear me?")
	} else {
		v, err := buildPlugin(plugin.KindSTT, sttName, map[string]any{"model": env.STTModel})
		if err != nil {
			return nil, nil, nil, err
		}
		t, ok := v.(stt.Transcriber)
		if !ok {
			return nil, nil, nil, fmt.Errorf("plugin stt/%s does not implement stt.Transcriber", sttName)
		}
		transcriber = t
	}

	var generator llm.ResponseGenerator
	if llmName == "fake" {
		generator = llmfake.NewGenerator()
	} else {
		v, err := buildPlugin(plugin.KindLLM, llmName, map[string]any{"model": env.LLMModel})
		if err != nil {
			return nil, nil, nil, err
		}
		g, ok := v.(llm.ResponseGenerator)
		if !ok {
			return nil, nil, nil, fmt.Errorf("plugin llm/%s does not implement llm.ResponseGenerator", llmName)
		}
		generator = g
	}

	var synth tts.Synthesizer
	if ttsName == "fake" {
		synth = ttsfake.NewSynthesizer()
	} else {
		v, err := buildPlugin(plugin.KindTTS, ttsName, map[string]any{"model": env.TTSModel, "voice": env.Voice})
		if err != nil {
			return nil, nil, nil, err
		}
		s, ok := v.(tts.Synthesizer)
		if !ok {
			return nil, nil, nil, fmt.Errorf("plugin tts/%s does not implement tts.Synthesizer", ttsName)
		}
		synth = s
	}

	return transcriber, generator, synth, nil
}

func buildPlugin(kind, name string, cfg map[string]any) (any, error) {
	factory, ok := plugin.Get(kind, name)
	if !ok {
		return nil, fmt.Errorf("no %s plugin registered as %q", kind, name)
	}
	v, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s/%s: %w", kind, name, err)
	}
	return v, nil
}

func logEvents(events <-chan session.Event, logger *slog.Logger) {
	for ev := range events {
		switch ev.Type {
		case session.EventState:
			logger.Debug("state changed", slog.String("state", ev.State.String()))
		case session.EventTranscript:
			logger.Info("transcript", slog.String("text", ev.Text))
		case session.EventReply:
			logger.Info("reply", slog.String("text", ev.Text))
		case session.EventInterrupt:
			logger.Info("interrupted", slog.String("spoken", ev.Text))
		case session.EventResumePrompt:
			logger.Info("resume prompt", slog.String("text", ev.Text))
		case session.EventClosed:
			return
		}
	}
}

func init() {
	runCmd.Flags().String("input", "", "Path to 16 kHz mono WAV file to replay as microphone input")
	runCmd.Flags().String("out", "out", "Directory for synthesized reply chunks")
	runCmd.Flags().String("stt", "openai", "Transcription provider (openai, fake)")
	runCmd.Flags().String("llm", "openai", "Response generation provider (openai, fake)")
	runCmd.Flags().String("tts", "openai", "Speech synthesis provider (openai, fake)")
	runCmd.Flags().String("vad", "energy", "Voice activity classifier (energy, silero)")
	runCmd.Flags().String("silero-model", "", "Path to silero ONNX model (with -tags=silero)")
	runCmd.Flags().Int("aggressiveness", 3, "VAD aggressiveness, 0 (lenient) to 3 (strict)")
	runCmd.Flags().String("voice", "", "Synthesis voice (overrides VOXLOOP_VOICE)")
	runCmd.MarkFlagRequired("input")

	serveCmd.Flags().String("addr", ":8080", "Listen address for the WebSocket bridge")
	serveCmd.Flags().String("out", "out", "Directory for synthesized reply chunks")
	serveCmd.Flags().String("stt", "openai", "Transcription provider (openai, fake)")
	serveCmd.Flags().String("llm", "openai", "Response generation provider (openai, fake)")
	serveCmd.Flags().String("tts", "openai", "Speech synthesis provider (openai, fake)")
	serveCmd.Flags().String("voice", "", "Synthesis voice (overrides VOXLOOP_VOICE)")

	pluginCmd.AddCommand(pluginListCmd, pluginDownloadCmd)
	rootCmd.AddCommand(versionCmd, runCmd, serveCmd, pluginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
