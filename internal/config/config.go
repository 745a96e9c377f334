package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации клиента.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	Stamps    StampsConfig    `yaml:"stamps"`
	Assets    AssetsConfig    `yaml:"assets"`
	Logging   LoggingConfig   `yaml:"logging"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type EngineConfig struct {
	TickRateHz       int   `yaml:"tick_rate_hz"`
	ClientOnlyIDBase int32 `yaml:"client_only_id_base"`
	DebugInvariants  bool  `yaml:"debug_invariants"`
	RequestSnapshots *bool `yaml:"request_snapshots"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // пусто: in-memory шина
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
	Source    string `yaml:"source"`
}

type ProtocolConfig struct {
	CompressFrames bool `yaml:"compress_frames"`
}

type StampsConfig struct {
	Backend string `yaml:"backend"` // memory | badger
	Path    string `yaml:"path"`
}

type AssetsConfig struct {
	Root string `yaml:"root"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

type ServerConfig struct {
	MetricsPort int `yaml:"metrics_port"`
}

type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Endpoint    string  `yaml:"endpoint"` // host:port OTLP/HTTP, пусто: localhost:4318
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			TickRateHz:       20,
			ClientOnlyIDBase: 1 << 30,
		},
		EventBus: EventBusConfig{
			Stream:    "AOI",
			Retention: 1,
			Buffer:    1024,
			Source:    "aoi-client",
		},
		Stamps: StampsConfig{
			Backend: "memory",
			Path:    "data/stamps",
		},
		Assets: AssetsConfig{
			Root: "assets",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "aoi-client",
			SampleRatio: 1,
		},
	}
}

// TickInterval возвращает длительность одного тика
func (e *EngineConfig) TickInterval() time.Duration {
	if e.TickRateHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(e.TickRateHz)
}

// SnapshotsEnabled сообщает, нужно ли запрашивать свежие свойства при входе в AoI
func (e *EngineConfig) SnapshotsEnabled() bool {
	return e.RequestSnapshots == nil || *e.RequestSnapshots
}

// GetMetricsPort возвращает Prometheus порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "AOI_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV AOI_CONFIG; без файла возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("AOI_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые нельзя молча исправить
func (c *Config) Validate() error {
	if c.Engine.ClientOnlyIDBase <= 0 {
		return fmt.Errorf("engine.client_only_id_base должен быть > 0, получено %d", c.Engine.ClientOnlyIDBase)
	}
	switch c.Stamps.Backend {
	case "", "memory", "badger":
	default:
		return fmt.Errorf("stamps.backend: неизвестный backend %q", c.Stamps.Backend)
	}
	return nil
}
