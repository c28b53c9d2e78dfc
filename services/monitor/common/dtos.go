package common

import (
	"fmt"
	"strconv"
	"strings"
)

// SensorType identifies a physical or remote sensor
type SensorType string

// MetricType identifies a quantity measured by a sensor
type MetricType string

// Built-in sensors of the ANAVI boards
const (
	SensorHTU21D SensorType = "HTU21D"
	SensorBMP180 SensorType = "BMP180"
	SensorBH1750 SensorType = "BH1750"
)

// Known metric types
const (
	MetricTemperature MetricType = "temperature"
	MetricHumidity    MetricType = "humidity"
	MetricPressure    MetricType = "pressure"
	MetricLight       MetricType = "light"
)

var defaultUnits = map[MetricType]string{
	MetricTemperature: "°C",
	MetricHumidity:    "%",
	MetricPressure:    "hPa",
	MetricLight:       "lux",
}

// UnitOf returns the measurement unit of a known metric, or an empty string
func UnitOf(metric MetricType) string {
	return defaultUnits[metric]
}

// Readings holds the values of one snapshot, grouped by sensor. A nil value marks an unavailable reading.
type Readings map[SensorType]map[MetricType]*float64

// Snapshot is one timestamped set of readings across all configured sensors
type Snapshot struct {
	Timestamp int64    `json:"timestamp"`
	Readings  Readings `json:"readings"`
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Timestamp: s.Timestamp,
		Readings:  make(Readings, len(s.Readings)),
	}
	for sensor, metrics := range s.Readings {
		m := make(map[MetricType]*float64, len(metrics))
		for metric, value := range metrics {
			m[metric] = cloneFloat(value)
		}
		out.Readings[sensor] = m
	}

	return out
}

// Value returns the reading for the given sensor and metric and whether it is available
func (s Snapshot) Value(sensor SensorType, metric MetricType) (float64, bool) {
	v := s.Readings[sensor][metric]
	if v == nil {
		return 0, false
	}

	return *v, true
}

// FormatValue renders a reading with the shortest representation that round-trips
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Float returns a pointer to a copy of v
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}

// MetricKey addresses one metric of one sensor
type MetricKey struct {
	Sensor SensorType
	Metric MetricType
}

// String returns the sensor.metric notation
func (k MetricKey) String() string {
	return string(k.Sensor) + "." + string(k.Metric)
}

// MarshalText encodes the key as sensor.metric so it can be used as a JSON object key
func (k MetricKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes the sensor.metric notation
func (k *MetricKey) UnmarshalText(text []byte) error {
	idx := strings.LastIndex(string(text), ".")
	if idx <= 0 || idx == len(text)-1 {
		return fmt.Errorf("invalid metric key %q", string(text))
	}

	k.Sensor = SensorType(text[:idx])
	k.Metric = MetricType(text[idx+1:])
	return nil
}

// Threshold holds the optional bounds of one metric. Values outside [Low, High] are critical,
// values outside [WarnLow, WarnHigh] are warnings.
type Threshold struct {
	Low      *float64 `json:"low"`
	High     *float64 `json:"high"`
	WarnLow  *float64 `json:"warnLow,omitempty"`
	WarnHigh *float64 `json:"warnHigh,omitempty"`
}

// Clone returns a deep copy of the threshold
func (t Threshold) Clone() Threshold {
	return Threshold{
		Low:      cloneFloat(t.Low),
		High:     cloneFloat(t.High),
		WarnLow:  cloneFloat(t.WarnLow),
		WarnHigh: cloneFloat(t.WarnHigh),
	}
}

// ThresholdTable holds the thresholds of every sensor metric
type ThresholdTable map[SensorType]map[MetricType]Threshold

// Clone returns a deep copy of the table
func (tt ThresholdTable) Clone() ThresholdTable {
	out := make(ThresholdTable, len(tt))
	for sensor, metrics := range tt {
		m := make(map[MetricType]Threshold, len(metrics))
		for metric, threshold := range metrics {
			m[metric] = threshold.Clone()
		}
		out[sensor] = m
	}

	return out
}

// Get returns the threshold of a metric, if defined
func (tt ThresholdTable) Get(sensor SensorType, metric MetricType) (Threshold, bool) {
	t, ok := tt[sensor][metric]
	return t, ok
}

// Set stores the threshold of a metric
func (tt ThresholdTable) Set(sensor SensorType, metric MetricType, threshold Threshold) {
	metrics, ok := tt[sensor]
	if !ok {
		metrics = make(map[MetricType]Threshold)
		tt[sensor] = metrics
	}
	metrics[metric] = threshold
}

// StatusLevel classifies status messages
type StatusLevel string

// Status levels
const (
	StatusInfo    StatusLevel = "info"
	StatusWarning StatusLevel = "warning"
	StatusError   StatusLevel = "error"
)

// StatusReadErrorPrefix starts the text of the status published for a failed sensor read
const StatusReadErrorPrefix = "Error reading data - "

// StatusMessage is a user visible status line about one sensor
type StatusMessage struct {
	Timestamp int64       `json:"timestamp"`
	Sensor    SensorType  `json:"sensor"`
	Level     StatusLevel `json:"level"`
	Text      string      `json:"text"`
}

// IsReadError returns true if the message reports a failed sensor read
func (m StatusMessage) IsReadError() bool {
	return strings.HasPrefix(m.Text, StatusReadErrorPrefix)
}

// AlertTransition records a change of the alert state of one metric
type AlertTransition struct {
	Timestamp int64      `json:"timestamp"`
	Key       MetricKey  `json:"key"`
	From      AlertState `json:"from"`
	To        AlertState `json:"to"`
	Value     *float64   `json:"value"`
}

// AlertRecord is one archived non-normal reading
type AlertRecord struct {
	Timestamp int64      `json:"timestamp"`
	Key       MetricKey  `json:"key"`
	State     AlertState `json:"state"`
	Value     *float64   `json:"value"`
}
