package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/evaluator"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/store"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/pelletier/go-toml/v2"
)

var log = logger.GetOrCreate("config")

var errNotFinite = errors.New("bound is not a finite number")

// Supported sensor drivers
const (
	DriverHTU21D = "htu21d"
	DriverBMP180 = "bmp180"
	DriverBH1750 = "bh1750"
	DriverRemote = "remote"
)

const (
	defaultIntervalInMilliseconds   = 5000
	minIntervalInMilliseconds       = 100
	defaultReadAttempts             = 3
	defaultRetryDelayInMilliseconds = 50
	defaultMaxPoints                = 1000
	defaultI2CBus                   = "/dev/i2c-1"
	defaultRemoteTimeoutInSeconds   = 5
	defaultLogFilePrefix            = "sensor_log"
	defaultMaxFileSizeInMB          = 10
	defaultMaxArchives              = 5
	defaultRetentionSeconds         = 7 * 24 * 3600
	defaultWebhookTimeoutInSeconds  = 5
	defaultWebhookQueueSize         = 64
)

// PollingConfig holds the sampling loop settings
type PollingConfig struct {
	IntervalInMilliseconds   uint32 `toml:"IntervalInMilliseconds"`
	MockMode                 bool   `toml:"MockMode"`
	ReadAttempts             int    `toml:"ReadAttempts"`
	RetryDelayInMilliseconds uint32 `toml:"RetryDelayInMilliseconds"`
	FallbackToMock           bool   `toml:"FallbackToMock"`
}

// HistoryConfig holds the in-memory history settings
type HistoryConfig struct {
	MaxPoints int `toml:"MaxPoints"`
}

// RemoteMetricConfig maps a metric to a JSON path of a remote endpoint
type RemoteMetricConfig struct {
	Name string `toml:"Name"`
	Path string `toml:"Path"`
	Unit string `toml:"Unit"`
}

// SensorConfig defines a single sensor
type SensorConfig struct {
	Name             string               `toml:"Name"`
	Driver           string               `toml:"Driver"`
	Enabled          bool                 `toml:"Enabled"`
	Bus              string               `toml:"Bus"`
	Address          uint16               `toml:"Address"`
	URL              string               `toml:"URL"`
	TimeoutInSeconds uint32               `toml:"TimeoutInSeconds"`
	Oversampling     uint8                `toml:"Oversampling"`
	Metrics          []RemoteMetricConfig `toml:"Metrics"`
}

// ThresholdConfig holds the bounds of one metric as written by the user. Empty strings are undefined bounds.
type ThresholdConfig struct {
	Sensor   string `toml:"Sensor"`
	Metric   string `toml:"Metric"`
	Low      string `toml:"Low"`
	High     string `toml:"High"`
	WarnLow  string `toml:"WarnLow"`
	WarnHigh string `toml:"WarnHigh"`
}

// CSVLogConfig holds the CSV reading log settings
type CSVLogConfig struct {
	Enabled         bool   `toml:"Enabled"`
	Directory       string `toml:"Directory"`
	FilePrefix      string `toml:"FilePrefix"`
	MaxFileSizeInMB int    `toml:"MaxFileSizeInMB"`
	MaxArchives     int    `toml:"MaxArchives"`
}

// ArchiveConfig holds the sqlite archive settings
type ArchiveConfig struct {
	Enabled          bool   `toml:"Enabled"`
	Path             string `toml:"Path"`
	RetentionSeconds int    `toml:"RetentionSeconds"`
}

// APIConfig holds the web server settings
type APIConfig struct {
	Enabled       bool   `toml:"Enabled"`
	ListenAddress string `toml:"ListenAddress"`
}

// WebhookConfig holds the alert webhook settings
type WebhookConfig struct {
	Enabled          bool   `toml:"Enabled"`
	URL              string `toml:"URL"`
	TimeoutInSeconds uint32 `toml:"TimeoutInSeconds"`
	QueueSize        int    `toml:"QueueSize"`
}

// Config maps to the config.toml file of the monitor service
type Config struct {
	Name       string            `toml:"Name"`
	Polling    PollingConfig     `toml:"Polling"`
	History    HistoryConfig     `toml:"History"`
	Sensors    []SensorConfig    `toml:"Sensors"`
	Thresholds []ThresholdConfig `toml:"Thresholds"`
	CSVLog     CSVLogConfig      `toml:"CSVLog"`
	Archive    ArchiveConfig     `toml:"Archive"`
	API        APIConfig         `toml:"API"`
	Webhook    WebhookConfig     `toml:"Webhook"`
}

// LoadConfig parses a TOML file into the Config struct, applies the defaults and validates the result
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filepath, err)
	}

	var cfg Config
	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyDefaults()
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills the unset values with their defaults
func (c *Config) ApplyDefaults() {
	if c.Polling.IntervalInMilliseconds == 0 {
		c.Polling.IntervalInMilliseconds = defaultIntervalInMilliseconds
	}
	if c.Polling.IntervalInMilliseconds < minIntervalInMilliseconds {
		c.Polling.IntervalInMilliseconds = minIntervalInMilliseconds
	}
	if c.Polling.ReadAttempts <= 0 {
		c.Polling.ReadAttempts = defaultReadAttempts
	}
	if c.Polling.RetryDelayInMilliseconds == 0 {
		c.Polling.RetryDelayInMilliseconds = defaultRetryDelayInMilliseconds
	}
	if c.History.MaxPoints <= 0 {
		c.History.MaxPoints = defaultMaxPoints
	}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		s.Driver = strings.ToLower(s.Driver)
		if s.Bus == "" {
			s.Bus = defaultI2CBus
		}
		if s.TimeoutInSeconds == 0 {
			s.TimeoutInSeconds = defaultRemoteTimeoutInSeconds
		}
		if s.Name == "" {
			s.Name = strings.ToUpper(s.Driver)
		}
	}
	if c.CSVLog.FilePrefix == "" {
		c.CSVLog.FilePrefix = defaultLogFilePrefix
	}
	if c.CSVLog.MaxFileSizeInMB <= 0 {
		c.CSVLog.MaxFileSizeInMB = defaultMaxFileSizeInMB
	}
	if c.CSVLog.MaxArchives <= 0 {
		c.CSVLog.MaxArchives = defaultMaxArchives
	}
	if c.Archive.RetentionSeconds <= 0 {
		c.Archive.RetentionSeconds = defaultRetentionSeconds
	}
	if c.Webhook.TimeoutInSeconds == 0 {
		c.Webhook.TimeoutInSeconds = defaultWebhookTimeoutInSeconds
	}
	if c.Webhook.QueueSize <= 0 {
		c.Webhook.QueueSize = defaultWebhookQueueSize
	}
}

// Validate checks the settings that can not be defaulted
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Sensors))
	for _, s := range c.Sensors {
		switch s.Driver {
		case DriverHTU21D, DriverBMP180, DriverBH1750:
		case DriverRemote:
			if s.URL == "" {
				return fmt.Errorf("sensor %s: URL is required for the remote driver", s.Name)
			}
			if len(s.Metrics) == 0 {
				return fmt.Errorf("sensor %s: at least one metric is required for the remote driver", s.Name)
			}
		default:
			return fmt.Errorf("sensor %s: unknown driver %q", s.Name, s.Driver)
		}

		if _, found := seen[s.Name]; found {
			return fmt.Errorf("duplicate sensor name %s", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	if c.History.MaxPoints > store.MaxHistoryPoints {
		return fmt.Errorf("History.MaxPoints must not exceed %d", store.MaxHistoryPoints)
	}
	if c.CSVLog.Enabled && c.CSVLog.Directory == "" {
		return errors.New("CSVLog.Directory is required when the CSV log is enabled")
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return errors.New("Archive.Path is required when the archive is enabled")
	}
	if c.API.Enabled && c.API.ListenAddress == "" {
		return errors.New("API.ListenAddress is required when the API is enabled")
	}
	if c.Webhook.Enabled && c.Webhook.URL == "" {
		return errors.New("Webhook.URL is required when the webhook is enabled")
	}

	return nil
}

// MetricsOf returns the metric types produced by the sensor
func (s SensorConfig) MetricsOf() []common.MetricType {
	switch s.Driver {
	case DriverHTU21D:
		return []common.MetricType{common.MetricTemperature, common.MetricHumidity}
	case DriverBMP180:
		return []common.MetricType{common.MetricTemperature, common.MetricPressure}
	case DriverBH1750:
		return []common.MetricType{common.MetricLight}
	default:
		metrics := make([]common.MetricType, 0, len(s.Metrics))
		for _, m := range s.Metrics {
			metrics = append(metrics, common.MetricType(m.Name))
		}
		return metrics
	}
}

// Units returns the unit of every metric the configured sensors produce
func (c *Config) Units() map[common.MetricKey]string {
	units := make(map[common.MetricKey]string)
	for _, s := range c.Sensors {
		for _, metric := range s.MetricsOf() {
			units[common.MetricKey{Sensor: common.SensorType(s.Name), Metric: metric}] = common.UnitOf(metric)
		}
		for _, m := range s.Metrics {
			if m.Unit != "" {
				units[common.MetricKey{Sensor: common.SensorType(s.Name), Metric: common.MetricType(m.Name)}] = m.Unit
			}
		}
	}

	return units
}

// ParseThresholds converts the configured threshold strings into a table. Entries with a bad
// number keep their other bounds; the bad bound is logged and skipped. Entries whose bounds are
// inconsistent are logged and skipped entirely.
func ParseThresholds(entries []ThresholdConfig) common.ThresholdTable {
	table := common.ThresholdTable{}
	for _, entry := range entries {
		if entry.Sensor == "" || entry.Metric == "" {
			log.Warn("skipping threshold without sensor or metric", "sensor", entry.Sensor, "metric", entry.Metric)
			continue
		}

		threshold := common.Threshold{
			Low:      parseBound(entry, "Low", entry.Low),
			High:     parseBound(entry, "High", entry.High),
			WarnLow:  parseBound(entry, "WarnLow", entry.WarnLow),
			WarnHigh: parseBound(entry, "WarnHigh", entry.WarnHigh),
		}
		err := evaluator.ValidateThreshold(threshold)
		if err != nil {
			log.Warn("skipping invalid threshold", "sensor", entry.Sensor, "metric", entry.Metric, "error", err)
			continue
		}
		table.Set(common.SensorType(entry.Sensor), common.MetricType(entry.Metric), threshold)
	}

	return table
}

func parseBound(entry ThresholdConfig, field string, value string) *float64 {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "none") {
		return nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		err = errNotFinite
	}
	if err != nil {
		log.Warn("skipping invalid threshold bound",
			"sensor", entry.Sensor, "metric", entry.Metric, "field", field, "value", value, "error", err)
		return nil
	}

	return &v
}
