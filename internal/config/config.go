// Package config loads the control plane's configuration from a YAML file
// with environment-variable overrides, the way the rest of the ambient
// stack is configured.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// HostDConfig configures a Host daemon process.
type HostDConfig struct {
	Home        string   `yaml:"home"`
	RootImage   string   `yaml:"root_image"`
	KernelPath  string   `yaml:"kernel_path"`
	LogDir      string   `yaml:"log_dir"`
	QemuPath    string   `yaml:"qemu_path"`
	QemuImgPath string   `yaml:"qemu_img_path"`
	HostName    string   `yaml:"host_name"`
	ListenAddr  string   `yaml:"listen_addr"`
	CPUs        int      `yaml:"cpus"`
	MemBytes    int64    `yaml:"mem_bytes"`
	GPUsBDF     []string `yaml:"gpus_bdf"`
}

// ControllerDConfig configures the Controller process.
type ControllerDConfig struct {
	ListenAddr string   `yaml:"listen_addr"`
	HostAddrs  []string `yaml:"host_addrs"`
}

// PostgresConfig holds the audit ledger's Postgres connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig holds the host-inventory cache's Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// S3Config holds the base-image/kernel distribution cache's settings.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // non-empty for S3-compatible stores
}

// TracingConfig holds OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // otlp-http, stdout
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
}

// GuestExecConfig selects the Exec RPC's executor backend.
type GuestExecConfig struct {
	Backend       string `yaml:"backend"` // local, vsock
	VsockPort     uint32 `yaml:"vsock_port"`
}

// ObservabilityConfig groups every observability-related setting.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// Config is the root configuration tree, shared by every binary; each
// reads only the sections it needs.
type Config struct {
	Controller    ControllerDConfig   `yaml:"controller"`
	Host          HostDConfig         `yaml:"host"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Redis         RedisConfig         `yaml:"redis"`
	S3            S3Config            `yaml:"s3"`
	GuestExec     GuestExecConfig     `yaml:"guest_exec"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Default returns a Config with sensible defaults for local development.
func Default() *Config {
	return &Config{
		Controller: ControllerDConfig{
			ListenAddr: ":50051",
			HostAddrs:  []string{"127.0.0.1:50052"},
		},
		Host: HostDConfig{
			Home:        "/var/lib/hc/vms",
			RootImage:   "../../linux/root.qcow2",
			KernelPath:  "./linux/vmlinuz",
			LogDir:      "/var/log/hc",
			QemuPath:    "qemu-system-x86_64",
			QemuImgPath: "qemu-img",
			HostName:    "localhost",
			ListenAddr:  ":50052",
			CPUs:        8,
			MemBytes:    16 << 30,
		},
		Postgres: PostgresConfig{
			DSN: "",
		},
		Redis: RedisConfig{
			Addr: "",
		},
		S3: S3Config{
			Bucket: "",
			Region: "us-east-1",
		},
		GuestExec: GuestExecConfig{
			Backend: "local",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:     false,
				Exporter:    "stdout",
				Endpoint:    "localhost:4318",
				ServiceName: "hc",
				SampleRate:  1.0,
			},
			Metrics: MetricsConfig{
				Enabled:   true,
				Namespace: "hc",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "text",
			},
		},
	}
}

// LoadFromFile reads a YAML config file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies HC_-prefixed environment variable overrides.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("HC_CONTROLLER_ADDR"); v != "" {
		cfg.Controller.ListenAddr = v
	}
	if v := os.Getenv("HC_HOST_ADDR"); v != "" {
		cfg.Host.ListenAddr = v
	}
	if v := os.Getenv("HC_HOME"); v != "" {
		cfg.Host.Home = v
	}
	if v := os.Getenv("HC_ROOT_IMAGE"); v != "" {
		cfg.Host.RootImage = v
	}
	if v := os.Getenv("HC_KERNEL_PATH"); v != "" {
		cfg.Host.KernelPath = v
	}
	if v := os.Getenv("HC_QEMU_PATH"); v != "" {
		cfg.Host.QemuPath = v
	}
	if v := os.Getenv("HC_QEMU_IMG_PATH"); v != "" {
		cfg.Host.QemuImgPath = v
	}
	if v := os.Getenv("HC_HOST_NAME"); v != "" {
		cfg.Host.HostName = v
	}
	if v := os.Getenv("HC_PG_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("HC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("HC_S3_BUCKET"); v != "" {
		cfg.S3.Bucket = v
	}
	if v := os.Getenv("HC_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("HC_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	if v := os.Getenv("HC_GUEST_EXEC_BACKEND"); v != "" {
		cfg.GuestExec.Backend = v
	}
	if v := os.Getenv("HC_GUEST_EXEC_VSOCK_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GuestExec.VsockPort = uint32(n)
		}
	}
	if v := os.Getenv("HC_LOG_LEVEL"); v != "" {
		cfg.Observability.Logging.Level = v
	}
	if v := os.Getenv("HC_LOG_FORMAT"); v != "" {
		cfg.Observability.Logging.Format = v
	}
	if v := os.Getenv("HC_TRACING_ENABLED"); v != "" {
		cfg.Observability.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("HC_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("HC_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	if v := os.Getenv("HC_METRICS_ENABLED"); v != "" {
		cfg.Observability.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("HC_METRICS_NAMESPACE"); v != "" {
		cfg.Observability.Metrics.Namespace = v
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
