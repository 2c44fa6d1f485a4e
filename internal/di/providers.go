package di

import (
	"smd/internal/alerts"
	"smd/internal/capture"
	"smd/internal/incidents"
	"smd/internal/providers"
	"smd/internal/services"
	"smd/internal/statistic"
	"smd/internal/statistic/interfaces"
	"smd/internal/structures"
)

func ProvideSessionCounter(holder *providers.SessionCounterHolder) providers.SessionCounter {
	return holder
}

func ProvideStatsArchive(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) *statistic.StatsArchive {
	return statistic.NewStatsArchive(conf.Archive.Dir, compressor, logger)
}

// ProvideMonitorService builds the monitor service and closes the loop
// with the providers that observe it: the session gauges poll it and it
// pushes into the metrics provider and the incident composer.
func ProvideMonitorService(conf *structures.Config, logger providers.Logger, throttler *alerts.Throttler, archive *statistic.StatsArchive, holder *providers.SessionCounterHolder, metrics providers.MetricsProviderInterface, composer *incidents.Composer) (services.MonitorServiceInterface, error) {
	ms, err := services.NewMonitorService(conf, logger, throttler, archive)
	if err != nil {
		return nil, err
	}
	ms.AttachMetrics(metrics)
	ms.AttachIncidentSink(composer)
	holder.Attach(ms)
	return ms, nil
}

func ProvideSessionReader(service services.MonitorServiceInterface) capture.SessionReader {
	return service
}
