// Package config holds the typed configuration for the job server: server
// binding, resource limits, cache/runner/janitor tuning, and the paths of
// the external tools this service shells out to. Config is loaded from
// compiled-in defaults, optionally overlaid with a JSON file, and finally
// overlaid with MEDIAJOBD_-prefixed environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/forgemedia/mediajobs/internal/sizeutil"
)

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Resources ResourcesConfig `json:"resources"`
	Cache     CacheConfig     `json:"cache"`
	Runner    RunnerConfig    `json:"runner"`
	Janitor   JanitorConfig   `json:"janitor"`
	Tools     ToolsConfig     `json:"tools"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	MaxConcurrentConns   int    `json:"max_concurrent_conns"`
	ScratchRoot           string `json:"scratch_root"`
}

// ResourcesConfig configures the sampler and the admission controller's
// rejection thresholds (spec.md §3 ResourceLimits, §4.3 Resource Sampler).
type ResourcesConfig struct {
	MaxConcurrentTasks int           `json:"max_concurrent_tasks"`
	MaxCPUPercent      float64       `json:"max_cpu_percent"`
	MaxMemPercent      float64       `json:"max_mem_percent"`
	MaxDiskPercent     float64       `json:"max_disk_percent"`
	MinFreeDiskBytes   string        `json:"min_free_disk_bytes"`
	SampleInterval     time.Duration `json:"sample_interval"`
	HistorySize        int           `json:"history_size"`
	AlertThreshold     int           `json:"alert_threshold"`
}

// MinFreeDiskBytesValue parses MinFreeDiskBytes into an absolute byte count.
func (r ResourcesConfig) MinFreeDiskBytesValue() int64 {
	v, err := sizeutil.ParseSize(r.MinFreeDiskBytes)
	if err != nil {
		return 1 << 30
	}
	return v
}

// CacheConfig configures the artifact/metadata cache (spec.md §3 CacheEntry,
// invariant 6).
type CacheConfig struct {
	Root          string        `json:"root"`
	MaxSize       string        `json:"max_size"`
	IdleTTL       time.Duration `json:"idle_ttl"`
	BloomCapacity uint          `json:"bloom_capacity"`
}

// MaxSizeBytes parses MaxSize into an absolute byte count.
func (c CacheConfig) MaxSizeBytes() int64 {
	v, err := sizeutil.ParseSize(c.MaxSize)
	if err != nil {
		return 5 << 30
	}
	return v
}

// RunnerConfig configures the child-process runner (spec.md §4.4).
type RunnerConfig struct {
	MaxConcurrentRuns int           `json:"max_concurrent_runs"`
	DefaultTimeout    time.Duration `json:"default_timeout"`
	GracefulKillGrace time.Duration `json:"graceful_kill_grace"`
}

// JanitorConfig configures the sweep loop (spec.md §4.7).
type JanitorConfig struct {
	TickInterval        time.Duration `json:"tick_interval"`
	TaskTimeout         time.Duration `json:"task_timeout"`
	TempCompositionTTL  time.Duration `json:"temp_composition_ttl"`
	OutputTTL           time.Duration `json:"output_ttl"`
	TranscriptionTTL    time.Duration `json:"transcription_ttl"`
	DownloadTTL         time.Duration `json:"download_ttl"`
	KeyframeTTL         time.Duration `json:"keyframe_ttl"`
	CancelLockTTL       time.Duration `json:"cancel_lock_ttl"`
}

// ToolsConfig names the external binaries this service shells out to. Bare
// names are resolved against $PATH each time a child process is started.
type ToolsConfig struct {
	Codec      string `json:"codec"`       // e.g. "ffmpeg"
	CodecProbe string `json:"codec_probe"` // e.g. "ffprobe"
	Downloader string `json:"downloader"`  // e.g. "yt-dlp"
	SpeechToText string `json:"speech_to_text"` // e.g. "whisper", loaded into memory lazily on first use
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a fully-populated configuration with sensible defaults,
// mirroring the teacher's DefaultConfig() convention.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			MaxConcurrentConns: 256,
			ScratchRoot:        "./data",
		},
		Resources: ResourcesConfig{
			MaxConcurrentTasks: 4,
			MaxCPUPercent:      90,
			MaxMemPercent:      90,
			MaxDiskPercent:     90,
			MinFreeDiskBytes:   "5GiB",
			SampleInterval:     5 * time.Second,
			HistorySize:        60,
			AlertThreshold:     3,
		},
		Cache: CacheConfig{
			Root:          "./data/cache",
			MaxSize:       "5GiB",
			IdleTTL:       7 * 24 * time.Hour,
			BloomCapacity: 100000,
		},
		Runner: RunnerConfig{
			MaxConcurrentRuns: 2,
			DefaultTimeout:    30 * time.Minute,
			GracefulKillGrace: 5 * time.Second,
		},
		Janitor: JanitorConfig{
			TickInterval:       5 * time.Minute,
			TaskTimeout:        time.Hour,
			TempCompositionTTL: time.Hour,
			OutputTTL:          7 * 24 * time.Hour,
			TranscriptionTTL:   3 * 24 * time.Hour,
			DownloadTTL:        7 * 24 * time.Hour,
			KeyframeTTL:        3 * 24 * time.Hour,
			CancelLockTTL:      time.Hour,
		},
		Tools: ToolsConfig{
			Codec:        "ffmpeg",
			CodecProbe:   "ffprobe",
			Downloader:   "yt-dlp",
			SpeechToText: "whisper",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config starting from Default(), optionally overlaying a JSON
// file at path (if non-empty and it exists), then overlaying environment
// variables prefixed MEDIAJOBD_ (e.g. MEDIAJOBD_SERVER_PORT).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	const prefix = "MEDIAJOBD_"
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		key := strings.TrimPrefix(parts[0], prefix)
		val := parts[1]
		switch key {
		case "SERVER_HOST":
			cfg.Server.Host = val
		case "SERVER_PORT":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Server.Port = n
			}
		case "SERVER_SCRATCH_ROOT":
			cfg.Server.ScratchRoot = val
		case "RESOURCES_MAX_CONCURRENT_TASKS":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Resources.MaxConcurrentTasks = n
			}
		case "RESOURCES_MIN_FREE_DISK_BYTES":
			cfg.Resources.MinFreeDiskBytes = val
		case "CACHE_MAX_SIZE":
			cfg.Cache.MaxSize = val
		case "TOOLS_CODEC":
			cfg.Tools.Codec = val
		case "TOOLS_CODEC_PROBE":
			cfg.Tools.CodecProbe = val
		case "TOOLS_DOWNLOADER":
			cfg.Tools.Downloader = val
		case "LOGGING_LEVEL":
			cfg.Logging.Level = val
		case "LOGGING_FORMAT":
			cfg.Logging.Format = val
		}
	}
}

// Validate checks range constraints spec.md §4.3 places on ResourceLimits
// fields (the same ranges update_limits enforces at runtime).
func (c *Config) Validate() error {
	if c.Resources.MaxConcurrentTasks < 1 || c.Resources.MaxConcurrentTasks > 10 {
		return fmt.Errorf("resources.max_concurrent_tasks must be in [1,10], got %d", c.Resources.MaxConcurrentTasks)
	}
	for name, v := range map[string]float64{
		"max_cpu_percent":  c.Resources.MaxCPUPercent,
		"max_mem_percent":  c.Resources.MaxMemPercent,
		"max_disk_percent": c.Resources.MaxDiskPercent,
	} {
		if v < 50 || v > 95 {
			return fmt.Errorf("resources.%s must be in [50,95], got %v", name, v)
		}
	}
	free := c.Resources.MinFreeDiskBytesValue()
	if free < (1<<30) || free > (100<<30) {
		return fmt.Errorf("resources.min_free_disk_bytes must be in [1GiB,100GiB]")
	}
	if c.Runner.MaxConcurrentRuns < 1 {
		return fmt.Errorf("runner.max_concurrent_runs must be >= 1")
	}
	return nil
}
