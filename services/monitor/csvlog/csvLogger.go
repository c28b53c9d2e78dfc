package csvlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	logger "github.com/multiversx/mx-chain-logger-go"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logger.GetOrCreate("csvlog")

const (
	megabyte      = 1024 * 1024
	isoTimeFormat = "2006-01-02T15:04:05.000Z07:00"
	fileExtension = ".csv"
)

// Header is the first line of every log file
var Header = []string{"timestamp_ms", "iso_timestamp", "sensor_type", "metric_type", "value", "unit", "is_alert"}

var errEmptyDirectory = errors.New("empty log directory")

// ArgsCSVLogger is the DTO used to create a new CSV logger
type ArgsCSVLogger struct {
	Directory       string
	FilePrefix      string
	MaxFileSizeInMB int
	MaxArchives     int
	Units           map[common.MetricKey]string
}

type csvLogger struct {
	mut      sync.Mutex
	path     string
	output   *lumberjack.Logger
	size     int64
	maxBytes int64
	units    map[common.MetricKey]string
}

// NewCSVLogger creates the reading log. Files are rotated by size; archives are gzip-compressed
// and pruned beyond MaxArchives.
func NewCSVLogger(args ArgsCSVLogger) (*csvLogger, error) {
	if args.Directory == "" {
		return nil, errEmptyDirectory
	}
	if args.MaxFileSizeInMB <= 0 {
		args.MaxFileSizeInMB = 1
	}

	err := os.MkdirAll(args.Directory, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(args.Directory, args.FilePrefix+fileExtension)
	cl := &csvLogger{
		path: path,
		output: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    args.MaxFileSizeInMB,
			MaxBackups: args.MaxArchives,
			Compress:   true,
		},
		maxBytes: int64(args.MaxFileSizeInMB) * megabyte,
		units:    make(map[common.MetricKey]string, len(args.Units)),
	}
	for key, unit := range args.Units {
		cl.units[key] = unit
	}

	info, err := os.Stat(path)
	if err == nil {
		cl.size = info.Size()
	}

	return cl, nil
}

// Report appends one row per metric of the snapshot
func (cl *csvLogger) Report(_ context.Context, snapshot common.Snapshot, states common.AlertStates) error {
	rows, err := cl.formatRows(snapshot, states)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	cl.mut.Lock()
	defer cl.mut.Unlock()

	if cl.size > 0 && cl.size+int64(len(rows)) > cl.maxBytes {
		err = cl.rotate()
		if err != nil {
			return err
		}
	}
	if cl.size == 0 {
		err = cl.writeHeader()
		if err != nil {
			return err
		}
	}

	n, err := cl.output.Write(rows)
	cl.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write csv log: %w", err)
	}

	return nil
}

func (cl *csvLogger) rotate() error {
	err := cl.output.Rotate()
	if err != nil {
		return fmt.Errorf("failed to rotate csv log: %w", err)
	}

	log.Debug("csv log rotated", "file", cl.path, "size", cl.size)
	cl.size = 0

	return nil
}

func (cl *csvLogger) writeHeader() error {
	header, err := encodeRecords([][]string{Header})
	if err != nil {
		return err
	}

	n, err := cl.output.Write(header)
	cl.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	return nil
}

func (cl *csvLogger) formatRows(snapshot common.Snapshot, states common.AlertStates) ([]byte, error) {
	keys := make([]common.MetricKey, 0)
	for sensor, metrics := range snapshot.Readings {
		for metric := range metrics {
			keys = append(keys, common.MetricKey{Sensor: sensor, Metric: metric})
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})

	timestamp := strconv.FormatInt(snapshot.Timestamp, 10)
	isoTimestamp := time.UnixMilli(snapshot.Timestamp).UTC().Format(isoTimeFormat)

	records := make([][]string, 0, len(keys))
	for _, key := range keys {
		records = append(records, []string{
			timestamp,
			isoTimestamp,
			string(key.Sensor),
			string(key.Metric),
			formatValue(snapshot.Readings[key.Sensor][key.Metric]),
			cl.unitOf(key),
			strconv.FormatBool(states[key].IsAlert()),
		})
	}

	return encodeRecords(records)
}

func (cl *csvLogger) unitOf(key common.MetricKey) string {
	unit, found := cl.units[key]
	if found {
		return unit
	}

	return common.UnitOf(key.Metric)
}

func formatValue(value *float64) string {
	if value == nil {
		return ""
	}

	return common.FormatValue(*value)
}

func encodeRecords(records [][]string) ([]byte, error) {
	buff := bytes.NewBuffer(nil)
	w := csv.NewWriter(buff)
	err := w.WriteAll(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode csv records: %w", err)
	}

	return buff.Bytes(), nil
}

// Close closes the current log file
func (cl *csvLogger) Close() error {
	cl.mut.Lock()
	defer cl.mut.Unlock()

	return cl.output.Close()
}

// IsInterfaceNil returns true if the value under the interface is nil
func (cl *csvLogger) IsInterfaceNil() bool {
	return cl == nil
}
