package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gr4ytips/anavi-monitoring/commonGo"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/api"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/archive"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/csvlog"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/engine"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/evaluator"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/metrics"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/notifier"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/poller"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/sensors"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/store"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("factory")

// Credentials holds the secrets read from the .env file
type Credentials struct {
	AuthUsername     string
	AuthPasswordHash string
	JWTSecret        string
	WebhookAPIKey    string
}

type componentsHandler struct {
	bus           notifierBus
	poller        SensorPoller
	store         api.DataStore
	evaluator     api.ThresholdManager
	engine        Engine
	server        Server
	closers       []closer
	unsubscribers []func()

	mutCancel sync.Mutex
	cancel    func()
	done      <-chan struct{}
}

type notifierBus interface {
	Publish(event common.Event)
	Subscribe(handler func(event common.Event)) func()
	IsInterfaceNil() bool
}

// NewComponentsHandler creates and wires all the monitor components
func NewComponentsHandler(credentials Credentials, cfg config.Config) (*componentsHandler, error) {
	ch := &componentsHandler{
		bus: notifier.NewBus(),
	}

	err := ch.createComponents(credentials, cfg)
	if err != nil {
		ch.closeComponents()
		return nil, err
	}

	return ch, nil
}

func (ch *componentsHandler) createComponents(credentials Credentials, cfg config.Config) error {
	logNotifier := notifier.NewLogNotifier()
	ch.subscribe(logNotifier.Handle)

	promMetrics := metrics.NewPromMetrics()
	ch.subscribe(promMetrics.Handle)

	if cfg.Webhook.Enabled {
		webhook, err := notifier.NewWebhookNotifier(notifier.ArgsWebhookNotifier{
			URL:       cfg.Webhook.URL,
			APIKey:    credentials.WebhookAPIKey,
			Source:    cfg.Name,
			Timeout:   time.Duration(cfg.Webhook.TimeoutInSeconds) * time.Second,
			QueueSize: cfg.Webhook.QueueSize,
		})
		if err != nil {
			return fmt.Errorf("%w while creating the webhook notifier", err)
		}
		ch.closers = append(ch.closers, webhook)
		ch.subscribe(webhook.Handle)
	}

	sensorPoller, err := poller.NewSensorPoller(poller.ArgsSensorPoller{
		Sensors:   cfg.Sensors,
		Polling:   cfg.Polling,
		Factory:   sensors.NewDriverFactory(cfg.Polling),
		Publisher: ch.bus,
	})
	if err != nil {
		return err
	}
	ch.poller = sensorPoller

	dataStore, err := store.NewDataStore(cfg.History.MaxPoints)
	if err != nil {
		return err
	}
	ch.store = dataStore
	ch.unsubscribers = append(ch.unsubscribers, dataStore.Subscribe(ch.publishSnapshot))

	thresholdEvaluator, err := evaluator.NewThresholdEvaluator(evaluator.ArgsThresholdEvaluator{
		Publisher: ch.bus,
	})
	if err != nil {
		return err
	}
	_, err = thresholdEvaluator.ReplaceThresholds(config.ParseThresholds(cfg.Thresholds))
	if err != nil {
		return fmt.Errorf("%w in the configured thresholds", err)
	}
	ch.evaluator = thresholdEvaluator

	reporters := []engine.Reporter{promMetrics}
	if cfg.CSVLog.Enabled {
		csvLogger, errCSV := csvlog.NewCSVLogger(csvlog.ArgsCSVLogger{
			Directory:       cfg.CSVLog.Directory,
			FilePrefix:      cfg.CSVLog.FilePrefix,
			MaxFileSizeInMB: cfg.CSVLog.MaxFileSizeInMB,
			MaxArchives:     cfg.CSVLog.MaxArchives,
			Units:           cfg.Units(),
		})
		if errCSV != nil {
			return fmt.Errorf("%w while creating the CSV logger", errCSV)
		}
		ch.closers = append(ch.closers, csvLogger)
		reporters = append(reporters, csvLogger)
	}

	var readingsArchive api.Archive
	if cfg.Archive.Enabled {
		sqliteArchive, errArchive := archive.NewSQLiteArchive(cfg.Archive.Path, cfg.Archive.RetentionSeconds)
		if errArchive != nil {
			return fmt.Errorf("%w while creating the archive", errArchive)
		}
		ch.closers = append(ch.closers, sqliteArchive)
		reporters = append(reporters, sqliteArchive)
		readingsArchive = sqliteArchive
	}

	ch.engine, err = engine.NewMonitorEngine(engine.ArgsMonitorEngine{
		Poller:    sensorPoller,
		Store:     dataStore,
		Evaluator: thresholdEvaluator,
		Observer:  promMetrics,
		Reporters: reporters,
	})
	if err != nil {
		return err
	}

	if !cfg.API.Enabled {
		return nil
	}

	server, err := api.NewServer(api.ArgsWebServer{
		AuthUsername:     credentials.AuthUsername,
		AuthPasswordHash: credentials.AuthPasswordHash,
		JWTSecret:        credentials.JWTSecret,
		ListenAddress:    cfg.API.ListenAddress,
		Store:            dataStore,
		Thresholds:       thresholdEvaluator,
		Poller:           sensorPoller,
		Archive:          readingsArchive,
		Events:           ch.bus,
		MetricsHandler:   promMetrics.Handler(),
		GeneralHandler:   api.CORSMiddleware,
	})
	if err != nil {
		return err
	}
	ch.server = server

	return nil
}

func (ch *componentsHandler) subscribe(handler func(event common.Event)) {
	ch.unsubscribers = append(ch.unsubscribers, ch.bus.Subscribe(handler))
}

func (ch *componentsHandler) publishSnapshot(snapshot common.Snapshot) {
	ch.bus.Publish(common.Event{
		Kind:      common.EventSnapshot,
		Timestamp: snapshot.Timestamp,
		Snapshot:  &snapshot,
	})
}

// GetPoller returns the poller component
func (ch *componentsHandler) GetPoller() SensorPoller {
	return ch.poller
}

// GetStore returns the in-memory history
func (ch *componentsHandler) GetStore() api.DataStore {
	return ch.store
}

// GetEvaluator returns the threshold evaluator
func (ch *componentsHandler) GetEvaluator() api.ThresholdManager {
	return ch.evaluator
}

// GetEngine returns the engine component
func (ch *componentsHandler) GetEngine() Engine {
	return ch.engine
}

// GetServer returns the web server, nil when the API is disabled
func (ch *componentsHandler) GetServer() Server {
	return ch.server
}

// Start starts the web server and the sampling loop
func (ch *componentsHandler) Start() {
	ch.mutCancel.Lock()
	defer ch.mutCancel.Unlock()

	if ch.cancel != nil {
		return
	}

	if ch.server != nil {
		ch.server.Start()
	}

	var ctx context.Context
	ctx, ch.cancel = context.WithCancel(context.Background())
	ch.done = commonGo.CronJobStarterWithReset(ctx, ch.engine.Process, ch.poller.Interval, ch.poller.IntervalChanged())

	log.Info("sampling loop started", "interval", ch.poller.Interval())
}

// Close stops the sampling loop, waiting for the tick in progress, and then closes the inner components
func (ch *componentsHandler) Close() {
	ch.mutCancel.Lock()
	if ch.cancel != nil {
		ch.cancel()
		<-ch.done
		ch.cancel = nil
	}
	ch.mutCancel.Unlock()

	ch.closeComponents()
}

func (ch *componentsHandler) closeComponents() {
	if ch.server != nil {
		err := ch.server.Close()
		log.LogIfError(err)
		ch.server = nil
	}
	if ch.poller != nil {
		log.LogIfError(ch.poller.Close())
	}
	for _, c := range ch.closers {
		log.LogIfError(c.Close())
	}
	ch.closers = nil
	for _, unsubscribe := range ch.unsubscribers {
		unsubscribe()
	}
	ch.unsubscribers = nil
}
