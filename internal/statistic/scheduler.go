package statistic

import (
	"smd/internal/providers"
	"smd/internal/services"
	"smd/internal/statistic/interfaces"
	"smd/internal/structures"
	"sync"
	"time"

	"github.com/roylee0704/gron"
)

type Scheduler struct {
	config  *structures.Config
	logger  providers.Logger
	service services.MonitorServiceInterface
	prefs   *PreferencesManager
	archive *StatsArchive
	metrics providers.MetricsProviderInterface
	cron    *gron.Cron
	opsMu   sync.Mutex
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Monitor.AggregationInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		global := s.service.RefreshGlobal()
		s.logger.Debugf(providers.TypeApp, "Global fold: frames=%d violations=%d fps=%.0f compliance=%.0f%%",
			global.TotalFrames, global.TotalViolations, global.AverageFPS, global.ComplianceRate)
	})

	s.cron.AddFunc(gron.Every(s.config.Alerts.SaveInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		start := time.Now()
		if err := s.prefs.SaveToFile(s.config.Alerts.PreferencesPath); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting alert preferences: %s", err)
			return
		}
		s.metrics.ObservePersistenceDuration(time.Since(start))
		s.logger.Infof(providers.TypeApp, "Persisted alert preferences to %s", s.config.Alerts.PreferencesPath)
	})

	s.cron.AddFunc(gron.Every(s.config.Archive.FlushInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		if err := s.archive.Flush(); err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while flushing stats archive: %s", err)
		}
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Scheduler) Restore() error {
	return s.prefs.LoadFromFile(s.config.Alerts.PreferencesPath)
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting alert preferences and archive...")
	if err := s.prefs.SaveToFile(s.config.Alerts.PreferencesPath); err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting alert preferences: %s", err)
		return err
	}
	return s.archive.Flush()
}

func NewScheduler(config *structures.Config, logger providers.Logger, service services.MonitorServiceInterface, prefs *PreferencesManager, archive *StatsArchive, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:  config,
		logger:  logger,
		service: service,
		prefs:   prefs,
		archive: archive,
		metrics: metrics,
	}
}
