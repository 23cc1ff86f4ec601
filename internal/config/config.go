package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("postgres", defaults.Postgres)
	viper.SetDefault("coordinate", defaults.Coordinate)
	viper.SetDefault("storage_root", defaults.StorageRoot)
	viper.SetDefault("max_concurrent_global", defaults.MaxConcurrentGlobal)
	viper.SetDefault("max_concurrent_per_user", defaults.MaxConcurrentPerUser)
	viper.SetDefault("cooldown_seconds_per_book", defaults.CooldownSecondsPerBook)
	viper.SetDefault("queue_timeout_seconds", defaults.QueueTimeoutSeconds)
	viper.SetDefault("age_promotion_interval", defaults.AgePromotionInterval)
	viper.SetDefault("wake_tick_seconds", defaults.WakeTickSeconds)
	viper.SetDefault("soft_time_limit", defaults.SoftTimeLimitSeconds)
	viper.SetDefault("hard_time_limit", defaults.HardTimeLimitSeconds)
	viper.SetDefault("max_tasks_per_child", defaults.MaxTasksPerChild)
	viper.SetDefault("max_memory_per_child", defaults.MaxMemoryPerChildMB)
	viper.SetDefault("max_memory_percent", defaults.MaxMemoryPercent)
	viper.SetDefault("max_cpu_percent", defaults.MaxCPUPercent)
	viper.SetDefault("min_free_memory_mb", defaults.MinFreeMemoryMB)
	viper.SetDefault("processing_mode", defaults.ProcessingMode)
	viper.SetDefault("max_parallel_processors", defaults.MaxParallelProcessors)
	viper.SetDefault("consensus_threshold", defaults.ConsensusThreshold)
	viper.SetDefault("image_priority_threshold", defaults.ImagePriorityThreshold)
	viper.SetDefault("image_top_k", defaults.ImageTopK)
	viper.SetDefault("skip_service_pages", defaults.SkipServicePages)
	viper.SetDefault("nlp_model_cache_size", defaults.NLPModelCacheSize)
	viper.SetDefault("nlp_model_ttl_seconds", defaults.NLPModelTTLSeconds)
	viper.SetDefault("stuck_job_sweep_interval_seconds", defaults.StuckJobSweepIntervalSeconds)
	viper.SetDefault("visibility_timeout_seconds", defaults.VisibilityTimeoutSeconds)
	viper.SetDefault("rollout_percent_default", defaults.RolloutPercentDefault)
	viper.SetDefault("processors", defaults.Processors)

	// Environment variables with ORCH_ prefix
	viper.SetEnvPrefix("ORCH")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.orchestrator")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of the config file: on change it
// reloads the Config and runs the callbacks registered with OnChange.
// No caller in this module registers one, so a reload does not reach
// the processor registry or the rollout gate.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Book Processing Orchestrator configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
