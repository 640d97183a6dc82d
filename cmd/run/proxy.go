package run

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Mmx233/ProtoBridge/admin"
	"github.com/Mmx233/ProtoBridge/config"
	"github.com/Mmx233/ProtoBridge/protocols"
	"github.com/Mmx233/ProtoBridge/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	proxyCmd = &cobra.Command{
		Use:   "proxy",
		Short: "Start the proxy",
		Args:  cobra.NoArgs,
		RunE:  runProxy,
	}
)

func runProxy(cmd *cobra.Command, args []string) error {
	logger := log.With().Str("com", "proxy-cmd").Logger()

	logger.Info().Str("config", configFile).Msg("loading configuration")
	cfg, err := config.LoadProxyConfig(configFile)
	if err != nil {
		return err
	}
	registries, err := config.LoadRegistries(cfg.Registries, filepath.Dir(configFile))
	if err != nil {
		return err
	}
	set, err := protocols.Default()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := server.New(cfg, server.Options{
		Protocol:   set.Protocol,
		Registries: registries,
		Registerer: reg,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	logger.Info().
		Str("upstream_version", protocols.Name(cfg.Upstream.Protocol())).
		Strs("upstreams", cfg.Upstream.Servers).
		Msg("starting protobridge proxy")
	if err := srv.Start(ctx); err != nil {
		return err
	}
	defer srv.Stop()

	adminErr := make(chan error, 1)
	if cfg.Admin.Addr != "" {
		handler := admin.NewRouter(admin.Sources{
			Gatherer:  reg,
			Sessions:  srv.Sessions(),
			Upstreams: srv.Upstreams(),
			Schema:    set,
		})
		go func() {
			adminErr <- admin.Serve(ctx, cfg.Admin.Addr, handler)
		}()
	}

	adminRunning := cfg.Admin.Addr != ""
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err = <-srv.Err():
		logger.Error().Err(err).Msg("server error")
	case err = <-adminErr:
		adminRunning = false
		if err != nil {
			logger.Error().Err(err).Msg("admin endpoint error")
		}
	}
	cancel()
	if adminRunning {
		<-adminErr
	}
	return err
}
