package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/VoiceMesh/internal/adapters/http"
	"github.com/dkeye/VoiceMesh/internal/adapters/rtc"
	sig "github.com/dkeye/VoiceMesh/internal/adapters/signal"
	"github.com/dkeye/VoiceMesh/internal/app"
	"github.com/dkeye/VoiceMesh/internal/app/media"
	"github.com/dkeye/VoiceMesh/internal/app/orch"
	"github.com/dkeye/VoiceMesh/internal/app/peer"
	"github.com/dkeye/VoiceMesh/internal/config"
	"github.com/dkeye/VoiceMesh/internal/domain"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:           "voice-client",
	Short:         "Mesh voice chat client for a signaling relay",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	f := rootCmd.Flags()
	f.String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	f.String("relay-url", "", "websocket URL of the signaling relay")
	f.String("username", "", "display name announced to the relay")
	f.String("listen-addr", "", "address of the local control API")
	f.String("codec", "", "relay wire codec: json or msgpack")
	f.String("glare-policy", "", "who offers first: lower-id or always")
	f.String("audio-file", "", "Ogg/Opus file used as the microphone")
	f.String("record-dir", "", "directory receiving one Ogg file per remote track")
	f.String("log-level", "", "zerolog level")

	for key, flag := range map[string]string{
		"config":       "config",
		"relay_url":    "relay-url",
		"username":     "username",
		"listen_addr":  "listen-addr",
		"codec":        "codec",
		"glare_policy": "glare-policy",
		"audio_file":   "audio-file",
		"record_dir":   "record-dir",
		"log_level":    "log-level",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("voice client stopped")
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.Level())

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	codec, err := sig.NewCodec(cfg.Codec)
	if err != nil {
		return err
	}
	policy, err := peer.ParsePolicy(cfg.GlarePolicy)
	if err != nil {
		return err
	}

	transport := sig.NewClient(sig.Options{
		URL:        cfg.RelayURL,
		Codec:      codec,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
	})
	source := media.NewSource(capturer(cfg), media.NewInboundSet(playback(cfg)))
	session := orch.New(transport, rtc.NewFactory(cfg.STUNURL), source, orch.Config{
		Username:           cfg.Username,
		Policy:             policy,
		NegotiationTimeout: cfg.NegotiationTimeout,
		Chat: app.ChatOptions{
			HistoryLimit: cfg.HistoryLimit,
			RateLimit:    cfg.MessageRateLimit,
			RateInterval: cfg.MessageRateInterval,
		},
	})
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn().Err(err).Msg("session close")
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	err = session.Start(startCtx)
	startCancel()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router.SetupRouter(cfg, session),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("control API started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("control API forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if errors.Is(err, domain.ErrTransportClosed) {
		log.Warn().Msg("relay connection lost")
	}
	return err
}

func capturer(cfg *config.Config) media.Capturer {
	if cfg.AudioFile == "" {
		log.Info().Msg("no audio file configured, joining receive-only")
		return media.NoDevice{}
	}
	return media.OggFileCapturer{Path: cfg.AudioFile, Loop: cfg.AudioLoop}
}

func playback(cfg *config.Config) media.PlaybackFactory {
	if cfg.RecordDir == "" {
		return &media.Discard{}
	}
	return media.OggRecorder{Dir: cfg.RecordDir}
}
