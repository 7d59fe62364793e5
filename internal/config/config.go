package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "siting.cfg.json"

// SolarConfig holds solar layout defaults
type SolarConfig struct {
	Mode            string  `json:"mode" mapstructure:"mode"`
	TrialSpacing    float64 `json:"trialSpacing" mapstructure:"trialSpacing"`
	RowSpacing      float64 `json:"rowSpacing" mapstructure:"rowSpacing"`
	GCR             float64 `json:"gcr" mapstructure:"gcr"`
	LateralSpacing  float64 `json:"lateralSpacing" mapstructure:"lateralSpacing"`
	HalfExtent      float64 `json:"halfExtent" mapstructure:"halfExtent"`
	SampleOffset    float64 `json:"sampleOffset" mapstructure:"sampleOffset"`
	ProbeOffset     float64 `json:"probeOffset" mapstructure:"probeOffset"`
	TiltMode        string  `json:"tiltMode" mapstructure:"tiltMode"`
	HighElevation   float64 `json:"highElevation" mapstructure:"highElevation"`
	DownslopeSource string  `json:"downslopeSource" mapstructure:"downslopeSource"`
}

// WindConfig holds turbine layout defaults
type WindConfig struct {
	HubHeight             float64 `json:"hubHeight" mapstructure:"hubHeight"`
	MinSpacingInDiameters float64 `json:"minSpacingInDiameters" mapstructure:"minSpacingInDiameters"`
	BoundaryStep          float64 `json:"boundaryStep" mapstructure:"boundaryStep"`
}

// TerrainConfig holds elevation service settings
type TerrainConfig struct {
	URL     string        `json:"url" mapstructure:"url"`
	Path    string        `json:"path" mapstructure:"path"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	Cache   bool          `json:"cache" mapstructure:"cache"`
}

// EnergyConfig holds energy model service settings
type EnergyConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	URL          string        `json:"url" mapstructure:"url"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	OptimizerURL string        `json:"optimizerUrl" mapstructure:"optimizerUrl"`
}

// SQLiteConfig holds embedded store settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// PostgresConfig holds PostgreSQL store settings
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslMode" mapstructure:"sslMode"`
}

// DSN renders the connection string for gorm.io/driver/postgres.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// StorageConfig selects and configures the layout store
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
	Metrics        bool          `json:"metrics" mapstructure:"metrics"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Traces         bool          `json:"traces" mapstructure:"traces"`
	SampleRatio    float64       `json:"sampleRatio" mapstructure:"sampleRatio"`
}

// InfluxConfig holds InfluxDB telemetry settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL returns protocol://host:port.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds GELF output settings
type GraylogConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Address  string `json:"address" mapstructure:"address"`
	Facility string `json:"facility" mapstructure:"facility"`
}

// DispatcherConfig holds event dispatch settings
type DispatcherConfig struct {
	BufferSize int    `json:"bufferSize" mapstructure:"bufferSize"`
	AuditLog   string `json:"auditLog" mapstructure:"auditLog"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./sitelogs")

	viper.SetDefault("solar.mode", "south")
	viper.SetDefault("solar.trialSpacing", 5.0)
	viper.SetDefault("solar.rowSpacing", 0.0)
	viper.SetDefault("solar.gcr", 0.0)
	viper.SetDefault("solar.lateralSpacing", 5.7)
	viper.SetDefault("solar.halfExtent", 0.0)
	viper.SetDefault("solar.sampleOffset", 1.0)
	viper.SetDefault("solar.probeOffset", 10.0)
	viper.SetDefault("solar.tiltMode", "auto")
	viper.SetDefault("solar.highElevation", 1500.0)
	viper.SetDefault("solar.downslopeSource", "global")

	viper.SetDefault("wind.hubHeight", 100.0)
	viper.SetDefault("wind.minSpacingInDiameters", 1.0)
	viper.SetDefault("wind.boundaryStep", 50.0)

	viper.SetDefault("terrain.url", "http://localhost:8080")
	viper.SetDefault("terrain.path", "/api/v1/lookup")
	viper.SetDefault("terrain.timeout", "30s")
	viper.SetDefault("terrain.cache", true)

	viper.SetDefault("energy.enabled", false)
	viper.SetDefault("energy.url", "http://localhost:8090")
	viper.SetDefault("energy.timeout", "60s")
	viper.SetDefault("energy.optimizerUrl", "")

	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.sqlite.path", "./siting.db")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "siting")
	viper.SetDefault("storage.postgres.sslMode", "disable")
	viper.SetDefault("storage.memory.outputDir", "./layouts")
	viper.SetDefault("storage.memory.compressOutput", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "siting")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.metrics", true)
	viper.SetDefault("otel.metricInterval", "1m")
	viper.SetDefault("otel.traces", false)
	viper.SetDefault("otel.sampleRatio", 1.0)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "siting")
	viper.SetDefault("influx.bucket", "layouts")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
	viper.SetDefault("graylog.facility", "siting")

	viper.SetDefault("dispatcher.bufferSize", 64)
	viper.SetDefault("dispatcher.auditLog", "")
}

// UseDefaults installs the defaults without reading a file.
func UseDefaults() {
	setDefaults()
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

// GetSolarConfig returns solar layout defaults.
func GetSolarConfig() SolarConfig {
	return SolarConfig{
		Mode:            viper.GetString("solar.mode"),
		TrialSpacing:    viper.GetFloat64("solar.trialSpacing"),
		RowSpacing:      viper.GetFloat64("solar.rowSpacing"),
		GCR:             viper.GetFloat64("solar.gcr"),
		LateralSpacing:  viper.GetFloat64("solar.lateralSpacing"),
		HalfExtent:      viper.GetFloat64("solar.halfExtent"),
		SampleOffset:    viper.GetFloat64("solar.sampleOffset"),
		ProbeOffset:     viper.GetFloat64("solar.probeOffset"),
		TiltMode:        viper.GetString("solar.tiltMode"),
		HighElevation:   viper.GetFloat64("solar.highElevation"),
		DownslopeSource: viper.GetString("solar.downslopeSource"),
	}
}

// GetWindConfig returns turbine layout defaults.
func GetWindConfig() WindConfig {
	return WindConfig{
		HubHeight:             viper.GetFloat64("wind.hubHeight"),
		MinSpacingInDiameters: viper.GetFloat64("wind.minSpacingInDiameters"),
		BoundaryStep:          viper.GetFloat64("wind.boundaryStep"),
	}
}

// GetTerrainConfig returns elevation service settings.
func GetTerrainConfig() TerrainConfig {
	return TerrainConfig{
		URL:     viper.GetString("terrain.url"),
		Path:    viper.GetString("terrain.path"),
		Timeout: viper.GetDuration("terrain.timeout"),
		Cache:   viper.GetBool("terrain.cache"),
	}
}

// GetEnergyConfig returns energy model settings.
func GetEnergyConfig() EnergyConfig {
	return EnergyConfig{
		Enabled:      viper.GetBool("energy.enabled"),
		URL:          viper.GetString("energy.url"),
		Timeout:      viper.GetDuration("energy.timeout"),
		OptimizerURL: viper.GetString("energy.optimizerUrl"),
	}
}

// GetStorageConfig returns the storage configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		SQLite: SQLiteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslMode"),
		},
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
		Metrics:        viper.GetBool("otel.metrics"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Traces:         viper.GetBool("otel.traces"),
		SampleRatio:    viper.GetFloat64("otel.sampleRatio"),
	}
}

// GetInfluxConfig returns the InfluxDB configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled:  viper.GetBool("graylog.enabled"),
		Address:  viper.GetString("graylog.address"),
		Facility: viper.GetString("graylog.facility"),
	}
}

// GetDispatcherConfig returns event dispatch settings.
func GetDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize: viper.GetInt("dispatcher.bufferSize"),
		AuditLog:   viper.GetString("dispatcher.auditLog"),
	}
}
