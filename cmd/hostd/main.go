// Command hostd runs the Host daemon: the per-hypervisor process that
// supervises emulator instances, drives them over their monitor sockets, and
// exposes SpawnWarm/GetOverlays/Pause/Unpause/Destroy/Exec over gRPC to
// the Controller.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/hypercore/hc/internal/config"
	"github.com/hypercore/hc/internal/guestexec"
	"github.com/hypercore/hc/internal/hostd"
	"github.com/hypercore/hc/internal/idgen"
	"github.com/hypercore/hc/internal/imagestore"
	"github.com/hypercore/hc/internal/logging"
	"github.com/hypercore/hc/internal/metrics"
	"github.com/hypercore/hc/internal/tracing"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hostd",
		Short: "hostd runs a Host daemon supervising warm-pool VMs on one hypervisor",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config file")
	rootCmd.AddCommand(daemonCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func daemonCmd() *cobra.Command {
	var listenAddr, home, rootImage, kernelPath, hostName, guestExecBackend string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "run the Host daemon in the foreground",
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
				cfg.Host.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("home") {
				cfg.Host.Home = home
			}
			if cmd.Flags().Changed("root-image") {
				cfg.Host.RootImage = rootImage
			}
			if cmd.Flags().Changed("kernel") {
				cfg.Host.KernelPath = kernelPath
			}
			if cmd.Flags().Changed("host-name") {
				cfg.Host.HostName = hostName
			}
			if cmd.Flags().Changed("guest-exec-backend") {
				cfg.GuestExec.Backend = guestExecBackend
			}

			logging.SetLevelFromString(cfg.Observability.Logging.Level)
			logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)

			ctx := context.Background()
			if err := tracing.Init(ctx, tracing.Config{
				Enabled:     cfg.Observability.Tracing.Enabled,
				Exporter:    cfg.Observability.Tracing.Exporter,
				Endpoint:    cfg.Observability.Tracing.Endpoint,
				ServiceName: "hostd",
				SampleRate:  cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer tracing.Shutdown(context.Background())

			if cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Observability.Metrics.Namespace)
			}

			if err := os.MkdirAll(cfg.Host.Home, 0755); err != nil {
				return fmt.Errorf("create vm home %s: %w", cfg.Host.Home, err)
			}

			if cfg.S3.Bucket != "" {
				if err := fetchBaseImages(ctx, cfg); err != nil {
					logging.Op().Warn("falling back to local base image paths", "error", err)
				}
			}

			var executor guestexec.Executor
			switch cfg.GuestExec.Backend {
			case "vsock":
				executor = guestexec.NewVsock(guestexec.NewSequentialCIDResolver(), cfg.GuestExec.VsockPort)
			default:
				executor = guestexec.NewLocal()
			}

			h := hostd.New(hostd.Config{
				Home:        cfg.Host.Home,
				RootImage:   cfg.Host.RootImage,
				KernelPath:  cfg.Host.KernelPath,
				LogDir:      cfg.Host.LogDir,
				QemuPath:    cfg.Host.QemuPath,
				QemuImgPath: cfg.Host.QemuImgPath,
				HostName:    cfg.Host.HostName,
				CPUs:        cfg.Host.CPUs,
				MemBytes:    cfg.Host.MemBytes,
				GPUsBDF:     cfg.Host.GPUsBDF,
			}, idgen.UUID{}, executor)

			lis, err := net.Listen("tcp", cfg.Host.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.Host.ListenAddr, err)
			}

			grpcServer := grpc.NewServer()
			hostd.RegisterHostServer(grpcServer, hostd.NewServer(h))

			go func() {
				logging.Op().Info("hostd listening", "addr", cfg.Host.ListenAddr, "host_name", cfg.Host.HostName)
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

	cmd.Flags().StringVar(&listenAddr, "listen", ":50052", "gRPC listen address")
	cmd.Flags().StringVar(&home, "home", "/var/lib/hc/vms", "per-VM artifact root")
	cmd.Flags().StringVar(&rootImage, "root-image", "", "base qcow2 root image")
	cmd.Flags().StringVar(&kernelPath, "kernel", "", "kernel image path")
	cmd.Flags().StringVar(&hostName, "host-name", "", "logical host name reported via ReportInventory")
	cmd.Flags().StringVar(&guestExecBackend, "guest-exec-backend", "local", "guest exec backend: local, vsock")

	return cmd
}

// fetchBaseImages pulls the root filesystem and kernel from the configured
// S3-compatible bucket into the host's local cache, rewriting
// cfg.Host.RootImage/KernelPath to the cached paths on success. It leaves
// cfg untouched on any failure so the caller falls back to whatever local
// paths were already configured.
func fetchBaseImages(ctx context.Context, cfg *config.Config) error {
	store, err := imagestore.New(ctx, imagestore.Config{
		Bucket:   cfg.S3.Bucket,
		Region:   cfg.S3.Region,
		Endpoint: cfg.S3.Endpoint,
	})
	if err != nil {
		return fmt.Errorf("init image store: %w", err)
	}

	cacheDir := filepath.Join(cfg.Host.Home, "..", "images")
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("create image cache dir: %w", err)
	}

	rootDest := filepath.Join(cacheDir, "root.qcow2")
	rootSum, err := store.FetchToVerified(ctx, "root.qcow2", rootDest)
	if err != nil {
		return fmt.Errorf("fetch root image: %w", err)
	}

	kernelDest := filepath.Join(cacheDir, "vmlinuz")
	kernelSum, err := store.FetchToVerified(ctx, "vmlinuz", kernelDest)
	if err != nil {
		return fmt.Errorf("fetch kernel: %w", err)
	}

	cfg.Host.RootImage = rootDest
	cfg.Host.KernelPath = kernelDest
	logging.Op().Info("base images fetched from image store",
		"root_image", rootDest, "root_sha256", rootSum,
		"kernel", kernelDest, "kernel_sha256", kernelSum)
	return nil
}
