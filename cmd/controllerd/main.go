// Command controllerd runs the Controller: the control-plane process that
// tracks registered Host daemons, reconciles warm pools, dispatches
// forks, and arbitrates Acquire/Release handoff across the fleet.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/hypercore/hc/internal/audit"
	"github.com/hypercore/hc/internal/config"
	"github.com/hypercore/hc/internal/controlplane"
	"github.com/hypercore/hc/internal/hostcache"
	"github.com/hypercore/hc/internal/idgen"
	"github.com/hypercore/hc/internal/logging"
	"github.com/hypercore/hc/internal/metrics"
	"github.com/hypercore/hc/internal/tracing"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "controllerd",
		Short: "controllerd runs the control-plane process for a warm-pool VM fleet",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")
	rootCmd.AddCommand(daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func daemonCmd() *cobra.Command {
	var listenAddr string
	var hostAddrs []string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "run the Controller in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error
			if configFile != "" {
				cfg, err = config.LoadFromFile(configFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
			} else {
				cfg = config.Default()
			}
			config.LoadFromEnv(cfg)

			if cmd.Flags().Changed("listen") {
				cfg.Controller.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("host") {
				cfg.Controller.HostAddrs = hostAddrs
			}

			logging.SetLevelFromString(cfg.Observability.Logging.Level)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			ctx := context.Background()
			if err := tracing.Init(ctx, tracing.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: "controllerd",
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer tracing.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace)
			}

			var auditSink audit.Sink = audit.NoopSink{}
			if cfg.Postgres.DSN != "" {
				sink, err := audit.NewPostgresSink(ctx, cfg.Postgres.DSN)
				if err != nil {
					return fmt.Errorf("connect audit ledger: %w", err)
				}
				defer sink.Close()
				auditSink = sink
			}

			var cache *hostcache.Cache
			if cfg.Redis.Addr != "" {
				cache = hostcache.New(hostcache.Config{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer cache.Close()
			}

			c := controlplane.New(idgen.UUID{}, auditSink)
			if cache != nil {
				c.SetHostCache(cache)
			}

			for _, addr := range cfg.Controller.HostAddrs {
				client, err := controlplane.DialHost(addr)
				if err != nil {
					logging.Op().Error("failed to dial host daemon", "addr", addr, "error", err)
					continue
				}
				rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				inv, err := client.ReportInventory(rctx)
				cancel()
				if err != nil {
					logging.Op().Error("failed to report inventory", "addr", addr, "error", err)
					continue
				}
				c.RegisterHost(inv.Host, addr, client, *inv)
				logging.Op().Info("registered host", "host", inv.Host, "addr", addr, "cpus", inv.CPUs)
			}

			lis, err := net.Listen("tcp", cfg.Controller.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Controller.ListenAddr, err)
			}

			grpcServer := grpc.NewServer()
			controlplane.RegisterControllerServer(grpcServer, controlplane.NewServer(c))

			go func() {
				logging.Op().Info("controllerd listening", "addr", cfg.Controller.ListenAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logging.Op().Error("grpc server stopped", "error", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logging.Op().Info("shutdown signal received")
			grpcServer.GracefulStop()
			return nil
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", ":50051", "gRPC listen address")
	cmd.Flags().StringSliceVar(&hostAddrs, "host", nil, "Host daemon gRPC addresses to register at startup")

	return cmd
}
