package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/common"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/poller"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/store"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("api")

const (
	defaultTokenLifetime = 24 * time.Hour
	jwtSecretLength      = 32
)

// ArgsWebServer defines the web server arguments
type ArgsWebServer struct {
	AuthUsername     string
	AuthPasswordHash string
	JWTSecret        string
	TokenLifetime    time.Duration
	ListenAddress    string
	Store            DataStore
	Thresholds       ThresholdManager
	Poller           PollerSettings
	Archive          Archive
	Events           EventSource
	MetricsHandler   http.Handler
	GeneralHandler   func(http.Handler) http.Handler
}

// Settings is the runtime configuration editable from the dashboard
type Settings struct {
	IntervalInMilliseconds int64 `json:"intervalInMilliseconds"`
	MockMode               bool  `json:"mockMode"`
	MaxPoints              int   `json:"maxPoints"`
	HistoryLength          int   `json:"historyLength"`
}

// SettingsUpdate holds the settings to change. Absent fields are left untouched.
type SettingsUpdate struct {
	IntervalInMilliseconds *int64 `json:"intervalInMilliseconds"`
	MockMode               *bool  `json:"mockMode"`
	MaxPoints              *int   `json:"maxPoints"`
}

// LatestResponse is the body of the latest snapshot endpoint
type LatestResponse struct {
	Snapshot common.Snapshot    `json:"snapshot"`
	States   common.AlertStates `json:"states"`
	AnyAlert bool               `json:"anyAlert"`
}

type server struct {
	router         *gin.Engine
	httpServer     *http.Server
	store          DataStore
	thresholds     ThresholdManager
	poller         PollerSettings
	archive        Archive
	hub            *wsHub
	unsubscribe    func()
	upgrader       websocket.Upgrader
	username       string
	passwordHash   []byte
	jwtSecret      []byte
	tokenLifetime  time.Duration
	timeFunc       func() time.Time
	listenAddr     string
	metricsHandler http.Handler
	generalHandler func(http.Handler) http.Handler
	wg             sync.WaitGroup
}

// NewServer initializes the Gin engine and mounts all routes
func NewServer(args ArgsWebServer) (*server, error) {
	if check.IfNil(args.Store) {
		return nil, errors.New("store is required")
	}
	if check.IfNil(args.Thresholds) {
		return nil, errors.New("threshold manager is required")
	}
	if check.IfNil(args.Poller) {
		return nil, errors.New("poller settings are required")
	}
	if check.IfNil(args.Events) {
		return nil, errors.New("event source is required")
	}
	if args.GeneralHandler == nil {
		return nil, errors.New("nil http handler")
	}
	if args.TokenLifetime <= 0 {
		args.TokenLifetime = defaultTokenLifetime
	}

	jwtSecret := []byte(args.JWTSecret)
	if len(jwtSecret) == 0 {
		// issued tokens will not survive a restart
		jwtSecret = make([]byte, jwtSecretLength)
		if _, err := rand.Read(jwtSecret); err != nil {
			return nil, fmt.Errorf("failed to generate the jwt secret: %w", err)
		}
		log.Warn("no jwt secret configured, using a random one")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &server{
		router:         router,
		store:          args.Store,
		thresholds:     args.Thresholds,
		poller:         args.Poller,
		hub:            newWSHub(),
		username:       args.AuthUsername,
		passwordHash:   []byte(args.AuthPasswordHash),
		jwtSecret:      jwtSecret,
		tokenLifetime:  args.TokenLifetime,
		timeFunc:       time.Now,
		listenAddr:     args.ListenAddress,
		metricsHandler: args.MetricsHandler,
		generalHandler: args.GeneralHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the stream requires a valid token, the origin is not relevant
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if !check.IfNil(args.Archive) {
		s.archive = args.Archive
	}

	s.unsubscribe = args.Events.Subscribe(s.hub.Handle)
	s.setupRoutes()

	return s, nil
}

func (s *server) setupRoutes() {
	if s.metricsHandler != nil {
		s.router.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	api := s.router.Group("/api")

	api.POST("/auth/login", s.handleLogin)
	api.GET("/ws", s.authJWT(true), s.handleWebSocket)

	protected := api.Group("/")
	protected.Use(s.authJWT(false))
	{
		protected.GET("/snapshots/latest", s.handleGetLatest)
		protected.GET("/snapshots", s.handleGetSnapshots)
		protected.GET("/archive", s.handleGetArchive)
		protected.GET("/alerts", s.handleGetAlerts)
		protected.GET("/thresholds", s.handleGetThresholds)
		protected.PUT("/thresholds", s.handleReplaceThresholds)
		protected.PUT("/thresholds/:sensor/:metric", s.handleUpdateThreshold)
		protected.GET("/settings", s.handleGetSettings)
		protected.PUT("/settings", s.handleUpdateSettings)
	}
}

// Start listens and serves connections
func (s *server) Start() {
	handler := s.generalHandler(s.router)

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: handler,
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		log.Error("failed to listen", "error", err)
		return
	}
	s.listenAddr = ln.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("starting HTTP server", "address", s.listenAddr)

		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()
}

// Address returns the actual listen address
func (s *server) Address() string {
	return s.listenAddr
}

// Close gracefully stops the server and disconnects the websocket clients
func (s *server) Close() error {
	s.unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.hub.Close()
	s.wg.Wait()

	return err
}

// IsInterfaceNil returns true if the value under the interface is nil
func (s *server) IsInterfaceNil() bool {
	return s == nil
}

// --- Handlers ---

func (s *server) handleGetLatest(c *gin.Context) {
	snapshot, found := s.store.Latest()
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot available yet"})
		return
	}

	c.JSON(http.StatusOK, LatestResponse{
		Snapshot: snapshot,
		States:   s.thresholds.States(),
		AnyAlert: s.thresholds.AnyAlertActive(),
	})
}

func (s *server) handleGetSnapshots(c *gin.Context) {
	rangeSpec := c.DefaultQuery("range", store.RangeAll)

	c.JSON(http.StatusOK, gin.H{
		"range":     rangeSpec,
		"snapshots": s.store.Query(rangeSpec),
	})
}

func (s *server) handleGetArchive(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}

	from, to, err := s.parseTimeBounds(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snapshots, err := s.archive.QueryRange(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "snapshots": snapshots})
}

func (s *server) handleGetAlerts(c *gin.Context) {
	history := make([]common.AlertRecord, 0)
	if s.archive != nil {
		from, to, err := s.parseTimeBounds(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		history, err = s.archive.AlertHistory(c.Request.Context(), from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"anyAlert": s.thresholds.AnyAlertActive(),
		"states":   s.thresholds.States(),
		"history":  history,
	})
}

func (s *server) parseTimeBounds(c *gin.Context) (int64, int64, error) {
	from, err := parseMillis(c.Query("from"), 0)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid from: %w", err)
	}
	to, err := parseMillis(c.Query("to"), s.timeFunc().UnixMilli())
	if err != nil {
		return 0, 0, fmt.Errorf("invalid to: %w", err)
	}
	if from > to {
		return 0, 0, errors.New("from is after to")
	}

	return from, to, nil
}

func parseMillis(value string, defaultValue int64) (int64, error) {
	if value == "" {
		return defaultValue, nil
	}

	return strconv.ParseInt(value, 10, 64)
}

func (s *server) handleGetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, s.thresholds.Thresholds())
}

func (s *server) handleReplaceThresholds(c *gin.Context) {
	var table common.ThresholdTable
	if err := c.ShouldBindJSON(&table); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	updated, err := s.thresholds.ReplaceThresholds(table)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Info("thresholds replaced", "remote", c.ClientIP())
	c.JSON(http.StatusOK, updated)
}

func (s *server) handleUpdateThreshold(c *gin.Context) {
	var threshold common.Threshold
	if err := c.ShouldBindJSON(&threshold); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sensor := common.SensorType(c.Param("sensor"))
	metric := common.MetricType(c.Param("metric"))
	updated, err := s.thresholds.UpdateThreshold(sensor, metric, threshold)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Info("threshold updated", "sensor", sensor, "metric", metric, "remote", c.ClientIP())
	c.JSON(http.StatusOK, updated)
}

func (s *server) currentSettings() Settings {
	return Settings{
		IntervalInMilliseconds: s.poller.Interval().Milliseconds(),
		MockMode:               s.poller.MockMode(),
		MaxPoints:              s.store.Capacity(),
		HistoryLength:          s.store.Len(),
	}
}

func (s *server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentSettings())
}

func (s *server) handleUpdateSettings(c *gin.Context) {
	var update SettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if update.IntervalInMilliseconds != nil && *update.IntervalInMilliseconds <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intervalInMilliseconds must be positive"})
		return
	}
	if update.IntervalInMilliseconds != nil && *update.IntervalInMilliseconds > poller.MaxInterval.Milliseconds() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("intervalInMilliseconds must not exceed %d", poller.MaxInterval.Milliseconds())})
		return
	}
	if update.MaxPoints != nil && *update.MaxPoints > store.MaxHistoryPoints {
		c.JSON(http.StatusBadRequest, gin.H{"error": store.ErrCapacityTooLarge.Error()})
		return
	}

	if update.MaxPoints != nil {
		err := s.store.Resize(*update.MaxPoints)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if update.IntervalInMilliseconds != nil {
		s.poller.SetInterval(time.Duration(*update.IntervalInMilliseconds) * time.Millisecond)
	}
	if update.MockMode != nil && *update.MockMode != s.poller.MockMode() {
		s.poller.SetMockMode(*update.MockMode)
	}

	settings := s.currentSettings()
	log.Info("settings updated", "interval", settings.IntervalInMilliseconds,
		"mock mode", settings.MockMode, "max points", settings.MaxPoints)
	c.JSON(http.StatusOK, settings)
}

func (s *server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", "remote", c.ClientIP(), "error", err)
		return
	}

	initial := make([][]byte, 0, 1)
	snapshot, found := s.store.Latest()
	if found {
		data, errMarshal := json.Marshal(common.Event{
			Kind:      common.EventSnapshot,
			Timestamp: snapshot.Timestamp,
			Snapshot:  &snapshot,
		})
		if errMarshal == nil {
			initial = append(initial, data)
		}
	}

	s.hub.serve(conn, initial...)
}
