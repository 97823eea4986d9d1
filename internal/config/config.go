// Package config loads runtime configuration from the environment using
// viper, following the defaults-then-env-override shape used across the
// examined example services. It stays a thin typed accessor with no
// file-based layering and no live reload.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the broadcast core.
type Config struct {
	// Server / API
	Port int

	// Commentary LLM
	LLMAPIKey string
	LLMModel  string
	LLMBaseURL string

	// TTS
	TTSBaseURL string

	// RTMP ingest
	RTMPTargetURL string

	// Catalog / work dirs
	CatalogPath     string
	WorkDir         string
	EmergencyLiners string
	StationName     string
	StationIDPath   string

	// Playout tuning
	CommentaryCadence int // songs between commentary segments
	TargetBufferedSec float64
	MinBufferedSec    float64

	// Feature flags
	SchedulerCommentaryCarryOver bool

	// Logging
	LogLevel string
	LogPretty bool
}

// Load reads configuration from environment variables (prefix ONAIR_) with
// sane defaults, validating the handful of values that must be sane for the
// core to start at all.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ONAIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := Config{
		Port: v.GetInt("port"),

		LLMAPIKey:  v.GetString("llm.api_key"),
		LLMModel:   v.GetString("llm.model"),
		LLMBaseURL: v.GetString("llm.base_url"),

		TTSBaseURL: v.GetString("tts.base_url"),

		RTMPTargetURL: v.GetString("rtmp.target_url"),

		CatalogPath:     v.GetString("catalog.path"),
		WorkDir:         v.GetString("work_dir"),
		EmergencyLiners: v.GetString("emergency_liners_dir"),
		StationName:     v.GetString("station.name"),
		StationIDPath:   v.GetString("station.id_wav_path"),

		CommentaryCadence: v.GetInt("commentary.cadence"),
		TargetBufferedSec: v.GetFloat64("buffer.target_sec"),
		MinBufferedSec:    v.GetFloat64("buffer.min_sec"),

		SchedulerCommentaryCarryOver: v.GetBool("scheduler.commentary_carry_over"),

		LogLevel:  v.GetString("log.level"),
		LogPretty: v.GetBool("log.pretty"),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.CatalogPath == "" {
		return fmt.Errorf("catalog path is required (ONAIR_CATALOG_PATH)")
	}
	if cfg.CommentaryCadence <= 0 {
		return fmt.Errorf("commentary cadence must be positive, got %d", cfg.CommentaryCadence)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")

	v.SetDefault("tts.base_url", "http://localhost:8000")

	v.SetDefault("rtmp.target_url", "rtmp://localhost:1935/live/radio")

	v.SetDefault("catalog.path", "")
	v.SetDefault("work_dir", "/tmp/rj")
	v.SetDefault("emergency_liners_dir", "/tmp/rj/liners")
	v.SetDefault("station.name", "onair")
	v.SetDefault("station.id_wav_path", "")

	v.SetDefault("commentary.cadence", 2)
	v.SetDefault("buffer.target_sec", 600.0)
	v.SetDefault("buffer.min_sec", 180.0)

	v.SetDefault("scheduler.commentary_carry_over", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// CrossfadeWindow returns the default crossfade window for a given priority,
// per the scheduler's transition-planning rule.
func CrossfadeWindow(priority int) time.Duration {
	switch {
	case priority >= 120:
		return time.Duration(2.2 * float64(time.Second))
	case priority >= 80:
		return time.Duration(2.8 * float64(time.Second))
	default:
		return time.Duration(3.6 * float64(time.Second))
	}
}
