package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "timeslider.cfg.json"

// TimelineConfig holds the initial view of the timeline
type TimelineConfig struct {
	Zoom          int     `json:"zoom" mapstructure:"zoom"`
	Width         float64 `json:"width" mapstructure:"width"`
	MinScaleWidth float64 `json:"minScaleWidth" mapstructure:"minScaleWidth"`
	Theme         string  `json:"theme" mapstructure:"theme"`
	Date          string  `json:"date" mapstructure:"date"`
}

// MarkerConfig holds marker playback settings
type MarkerConfig struct {
	Speed         float64       `json:"speed" mapstructure:"speed"`
	TickMode      string        `json:"tickMode" mapstructure:"tickMode"`
	TickInterval  time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	FrameInterval time.Duration `json:"frameInterval" mapstructure:"frameInterval"`
	SweepStale    bool          `json:"sweepStale" mapstructure:"sweepStale"`
}

// DataConfig points at the recording export
type DataConfig struct {
	Path     string `json:"path" mapstructure:"path"`
	Validate bool   `json:"validate" mapstructure:"validate"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects where marker state is persisted
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
	SQLite        SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// MonitorConfig controls the periodic status sampler
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./timeslider-logs")

	viper.SetDefault("timeline.zoom", 24)
	viper.SetDefault("timeline.width", 1200)
	viper.SetDefault("timeline.minScaleWidth", 50)
	viper.SetDefault("timeline.theme", "light-theme")
	viper.SetDefault("timeline.date", "")

	viper.SetDefault("marker.speed", 1.0)
	viper.SetDefault("marker.tickMode", "timer")
	viper.SetDefault("marker.tickInterval", "1s")
	viper.SetDefault("marker.frameInterval", "16ms")
	viper.SetDefault("marker.sweepStale", true)

	viper.SetDefault("data.path", "./recordings.json")
	viper.SetDefault("data.validate", true)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "timeslider")

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "timeslider")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// Timeline returns the timeline section.
func Timeline() TimelineConfig {
	return TimelineConfig{
		Zoom:          viper.GetInt("timeline.zoom"),
		Width:         viper.GetFloat64("timeline.width"),
		MinScaleWidth: viper.GetFloat64("timeline.minScaleWidth"),
		Theme:         viper.GetString("timeline.theme"),
		Date:          viper.GetString("timeline.date"),
	}
}

// Marker returns the marker section.
func Marker() MarkerConfig {
	return MarkerConfig{
		Speed:         viper.GetFloat64("marker.speed"),
		TickMode:      viper.GetString("marker.tickMode"),
		TickInterval:  viper.GetDuration("marker.tickInterval"),
		FrameInterval: viper.GetDuration("marker.frameInterval"),
		SweepStale:    viper.GetBool("marker.sweepStale"),
	}
}

// Data returns the data section.
func Data() DataConfig {
	return DataConfig{
		Path:     viper.GetString("data.path"),
		Validate: viper.GetBool("data.validate"),
	}
}

// Storage returns the storage section.
func Storage() StorageConfig {
	return StorageConfig{
		Type:          viper.GetString("storage.type"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// DB returns the Postgres section.
func DB() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

// OTel returns the OpenTelemetry section.
func OTel() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// Monitor returns the status monitor configuration.
func Monitor() MonitorConfig {
	return MonitorConfig{
		Enabled:    viper.GetBool("monitor.enabled"),
		StatusFile: viper.GetString("monitor.statusFile"),
		Interval:   viper.GetDuration("monitor.interval"),
	}
}
