package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"ipal-monitor/common/database"
	mqttcommon "ipal-monitor/common/mqtt"
	rediscommon "ipal-monitor/common/redis"
	"ipal-monitor/internal/api"
	"ipal-monitor/internal/auth"
	"ipal-monitor/internal/cache"
	"ipal-monitor/internal/config"
	"ipal-monitor/internal/counter"
	"ipal-monitor/internal/facility"
	"ipal-monitor/internal/livestore"
	"ipal-monitor/internal/mapper"
	"ipal-monitor/internal/metrics"
	"ipal-monitor/internal/models"
	"ipal-monitor/internal/report"
	"ipal-monitor/internal/watcher"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const cacheWriteTimeout = 5 * time.Second

// Deps are the backends a MonitorService runs on.
type Deps struct {
	Store livestore.Store
	// Source feeds the hub; nil when Store announces its own writes.
	Source  livestore.Source
	Hub     *livestore.Hub
	Lister  facility.Lister
	Session *auth.Session
	// KV backs the summary cache; nil disables it.
	KV cache.KVStore
}

// MonitorService wires the live store, watchers, counter and summary cache
// for the selected facility.
type MonitorService struct {
	config *config.Config
	logger *zap.Logger

	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	session  *auth.Session
	hub      *livestore.Hub
	source   livestore.Source
	selector *facility.Selector
	alerts   *watcher.Watcher
	readings *watcher.Watcher
	counter  *counter.AlertCounter
	summary  *cache.SummaryCache

	unRevoke func()

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMonitorService connects to the configured backends.
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	session := auth.NewSession(cfg.Token, nil)
	client := api.NewClient(&cfg.API, session, logger)
	hub := livestore.NewHub(logger)

	deps := Deps{
		Hub:     hub,
		Lister:  api.NewIPALService(client),
		Session: session,
	}

	var (
		db          *sql.DB
		redisClient *redis.Client
		mqttClient  *mqttcommon.Client
		err         error
	)
	cleanup := func() {
		database.Close(db)
		rediscommon.Close(redisClient)
		if mqttClient != nil {
			mqttClient.Disconnect()
		}
	}

	// 1. Redis: summary cache, and the change feed when LIVE_FEED=redis
	redisClient, err = rediscommon.Connect(context.Background(), &cfg.Redis)
	if err != nil {
		if cfg.Monitor.LiveFeed == config.FeedRedis {
			cleanup()
			return nil, err
		}
		logger.Warn("Redis unavailable, summary cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		deps.KV = cache.NewRedisKVStore(redisClient)
	}

	// 2. Document store
	if cfg.Monitor.LiveFeed == config.FeedMemory {
		deps.Store = livestore.NewMemoryStore(hub)
	} else {
		db, err = database.Open(context.Background(), &cfg.Database)
		if err != nil {
			cleanup()
			return nil, err
		}
		store := livestore.NewPostgresStore(db, logger)
		if err := store.EnsureSchema(context.Background()); err != nil {
			cleanup()
			return nil, err
		}
		deps.Store = store
	}

	// 3. Change feed
	switch cfg.Monitor.LiveFeed {
	case config.FeedPostgres:
		deps.Source = livestore.NewPGNotifySource(cfg.Database.GetDSN(), logger)
	case config.FeedRedis:
		stream := cfg.Monitor.Stream
		deps.Source = livestore.NewRedisStreamSource(redisClient, stream.Name, stream.Group, stream.Consumer, logger)
	case config.FeedMQTT:
		mqttClient, err = mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("failed to connect mqtt: %w", err)
		}
		deps.Source = livestore.NewMQTTSource(mqttClient, cfg.Monitor.MQTTTopic, cfg.MQTT.QoS, logger)
	}

	s, err := New(cfg, deps, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	s.db = db
	s.redisClient = redisClient
	s.mqttClient = mqttClient
	return s, nil
}

// New builds a service on deps without opening connections.
func New(cfg *config.Config, deps Deps, logger *zap.Logger) (*MonitorService, error) {
	live := livestore.NewLive(deps.Store, deps.Hub, logger)
	wcfg := watcher.Config{Store: live, Session: deps.Session, Logger: logger}

	alerts, err := watcher.NewAlertWatcher(wcfg, cfg.Monitor.Alerts)
	if err != nil {
		return nil, err
	}

	s := &MonitorService{
		config:   cfg,
		logger:   logger,
		session:  deps.Session,
		hub:      deps.Hub,
		source:   deps.Source,
		selector: facility.NewSelector(deps.Lister, logger),
		alerts:   alerts,
		readings: watcher.NewReadingWatcher(wcfg),
		counter:  counter.NewAlertCounter(live, cfg.Monitor.CountInterval, logger),
	}
	if deps.KV != nil {
		s.summary = cache.NewSummaryCache(deps.KV, cfg.Cache.Prefix, cfg.Cache.TTL, logger)
	}

	s.selector.OnSelect(s.onSelect)
	s.counter.OnUpdate(s.onCounts)
	return s, nil
}

// Start loads the facilities, selects one and starts the live views. It
// returns once everything is running.
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting ipal monitor",
		zap.String("live_feed", s.config.Monitor.LiveFeed),
		zap.Bool("summary_cache", s.summary != nil),
	)

	if !s.session.IsAuthenticated() {
		return fmt.Errorf("failed to start monitor: %w", s.session.Err())
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.source != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.Run(s.ctx, s.source)
		}()
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.forwardAlerts()
	}()
	go func() {
		defer s.wg.Done()
		s.forwardReadings()
	}()

	s.unRevoke = s.session.OnRevoke(func(reason error) {
		s.logger.Warn("Session revoked, stopping alert counter", zap.Error(reason))
		s.counter.Stop()
	})

	if _, err := s.selector.Load(s.ctx); err != nil {
		return err
	}
	if id := s.config.Monitor.IPALID; id > 0 {
		if _, err := s.selector.Select(id); err != nil {
			return fmt.Errorf("failed to select IPAL_ID %d: %w", id, err)
		}
	}
	if _, ok := s.selector.Selected(); !ok {
		s.logger.Warn("No active facility to monitor")
	}
	return nil
}

// Stop tears everything down. Safe to call more than once.
func (s *MonitorService) Stop() error {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping ipal monitor")

		if s.unRevoke != nil {
			s.unRevoke()
		}
		s.counter.Stop()
		s.alerts.Close()
		s.readings.Close()
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()

		if err := database.Close(s.db); err != nil {
			s.logger.Error("Failed to close database", zap.Error(err))
		}
		if err := rediscommon.Close(s.redisClient); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
		if s.mqttClient != nil {
			s.mqttClient.Disconnect()
		}
	})
	return nil
}

// Refresh reopens both live views and restarts count polling for the
// selected facility. Call it after a new Login to resume a revoked session.
func (s *MonitorService) Refresh() error {
	if !s.session.IsAuthenticated() {
		return fmt.Errorf("failed to refresh monitor: %w", s.session.Err())
	}
	f, ok := s.selector.Selected()
	if !ok {
		return nil
	}
	if err := s.alerts.Refresh(); err != nil {
		return err
	}
	if err := s.readings.Refresh(); err != nil {
		return err
	}
	s.counter.Start(f.IPALID)
	s.logger.Info("Monitor refreshed", zap.Int("ipal_id", f.IPALID))
	return nil
}

// Selector returns the facility selector.
func (s *MonitorService) Selector() *facility.Selector { return s.selector }

// Alerts returns the alert watcher.
func (s *MonitorService) Alerts() *watcher.Watcher { return s.alerts }

// Readings returns the latest-reading watcher.
func (s *MonitorService) Readings() *watcher.Watcher { return s.readings }

// Counter returns the alert counter.
func (s *MonitorService) Counter() *counter.AlertCounter { return s.counter }

// ExportAlerts renders the alerts currently shown by the alert watcher.
func (s *MonitorService) ExportAlerts() ([]byte, error) {
	st := s.alerts.State()
	alerts, err := mapper.ToAlerts(st.Entities)
	if err != nil {
		return nil, err
	}
	return report.GenerateAlertsExport(alerts, st.Aggregates)
}

func (s *MonitorService) onSelect(f models.Facility) {
	if err := s.alerts.SwitchFacility(f.IPALID); err != nil {
		s.logger.Error("Failed to switch alert watcher", zap.Int("ipal_id", f.IPALID), zap.Error(err))
	}
	if err := s.readings.SwitchFacility(f.IPALID); err != nil {
		s.logger.Error("Failed to switch reading watcher", zap.Int("ipal_id", f.IPALID), zap.Error(err))
	}
	s.counter.Start(f.IPALID)
}

func (s *MonitorService) onCounts(c counter.Counts) {
	metrics.SetAlertCounts(c.FacilityID, c.Active, c.Critical, c.High)
	if s.summary == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
	defer cancel()
	if err := s.summary.PutCounts(ctx, c); err != nil {
		metrics.RecordCacheWriteFailure()
		s.logger.Warn("Failed to cache alert counts", zap.Int("ipal_id", c.FacilityID), zap.Error(err))
	}
}

func (s *MonitorService) forwardAlerts() {
	for st := range s.alerts.Updates() {
		if st.Conn != watcher.Live || s.summary == nil {
			continue
		}
		summary := cache.AlertSummary{
			IPALID:      st.FacilityID,
			Aggregates:  st.Aggregates,
			NewAlertIDs: st.NewAlertIDs,
			UpdatedAt:   st.UpdatedAt,
		}
		if len(st.Entities) > 0 {
			summary.LatestType = st.Entities[0].String(models.FieldType)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		if err := s.summary.PutAlerts(ctx, summary); err != nil {
			metrics.RecordCacheWriteFailure()
			s.logger.Warn("Failed to cache alert summary", zap.Int("ipal_id", st.FacilityID), zap.Error(err))
		}
		cancel()
	}
}

func (s *MonitorService) forwardReadings() {
	for st := range s.readings.Updates() {
		if st.Conn != watcher.Live || s.summary == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		if err := s.summary.PutReading(ctx, st.FacilityID, st.Reading); err != nil {
			metrics.RecordCacheWriteFailure()
			s.logger.Warn("Failed to cache reading summary", zap.Int("ipal_id", st.FacilityID), zap.Error(err))
		}
		cancel()
	}
}

// SelectedFacility returns the facility being monitored.
func (s *MonitorService) SelectedFacility() (models.Facility, bool) { return s.selector.Selected() }

// SelectFacility switches monitoring to the facility with the given id.
func (s *MonitorService) SelectFacility(id any) (models.Facility, error) {
	return s.selector.Select(id)
}

// AlertState returns the alert watcher's state.
func (s *MonitorService) AlertState() watcher.State { return s.alerts.State() }

// ReadingState returns the latest-reading watcher's state.
func (s *MonitorService) ReadingState() watcher.State { return s.readings.State() }

// AlertCounts returns the last counts and the last poll error. While polling
// is halted by a revoked session the error is the session's.
func (s *MonitorService) AlertCounts() (counter.Counts, error) {
	if !s.counter.Running() && !s.session.IsAuthenticated() {
		return s.counter.Current(), s.session.Err()
	}
	return s.counter.Current(), s.counter.Err()
}
