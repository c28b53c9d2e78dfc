package commonGo

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/multiversx/mx-chain-logger-go/file"
)

// FileLoggingHandler defines the operations of a log file attached to the logger
type FileLoggingHandler interface {
	ChangeFileLifeSpan(newDuration time.Duration, newSizeInMB uint64) error
	Close() error
	IsInterfaceNil() bool
}

// AttachFileLogger attaches, if required, a log file
func AttachFileLogger(
	log logger.Logger,
	defaultLogsPath string,
	logFilePrefix string,
	saveLogFile bool,
	workingDir string) (FileLoggingHandler, error) {
	var err error
	var logFile FileLoggingHandler
	if saveLogFile {
		argsFileLogging := file.ArgsFileLogging{
			WorkingDir:      workingDir,
			DefaultLogsPath: defaultLogsPath,
			LogFilePrefix:   logFilePrefix,
		}
		logFile, err = file.NewFileLogging(argsFileLogging)
		if err != nil {
			return nil, fmt.Errorf("%w creating a log file", err)
		}
	}

	err = logger.SetDisplayByteSlice(logger.ToHex)
	log.LogIfError(err)

	return logFile, nil
}

// ReadEnvFile will read the file contents in the provided map
func ReadEnvFile(envFile string, m map[string]string) error {
	err := godotenv.Load(envFile)
	if err != nil {
		return err
	}

	for k := range m {
		val := os.Getenv(k)
		if len(val) == 0 {
			return fmt.Errorf("%s is not set in the .env file", k)
		}

		m[k] = val
	}

	return nil
}

// CronJobStarter is able to start a go routine that periodically calls the provided handler. The time between calls
// is re-read from intervalProvider after every call, so a changed interval applies starting with the next cycle.
// The returned channel is closed after the go routine exits, which only happens after the handler call in progress
// (if any) returned.
func CronJobStarter(ctx context.Context, handler func(ctx context.Context), intervalProvider func() time.Duration) <-chan struct{} {
	return CronJobStarterWithReset(ctx, handler, intervalProvider, nil)
}

// CronJobStarterWithReset works as CronJobStarter and also re-arms the pending wait whenever intervalChanged
// fires: the next call is scheduled at the new interval measured from the end of the previous call, or runs
// at once if that moment already passed.
func CronJobStarterWithReset(
	ctx context.Context,
	handler func(ctx context.Context),
	intervalProvider func() time.Duration,
	intervalChanged <-chan struct{},
) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		handler(ctx)
		lastRun := time.Now()

		timer := time.NewTimer(intervalProvider())
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
				if ctx.Err() != nil {
					return
				}
				handler(ctx)
				lastRun = time.Now()
				timer.Reset(intervalProvider())
			case <-intervalChanged:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(time.Until(lastRun.Add(intervalProvider())))
			case <-ctx.Done():
				return
			}
		}
	}()

	return done
}
