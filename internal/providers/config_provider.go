package providers

import (
	"fmt"
	"github.com/spf13/viper"
	"path/filepath"
	"smd/internal/structures"
	"strings"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "SMD_LOG_LEVEL")
	viper.BindEnv("monitor.backendUrl", "SMD_BACKEND_URL")
	viper.BindEnv("monitor.violationPolicy", "SMD_VIOLATION_POLICY")
	viper.BindEnv("monitor.aggregationInterval", "SMD_AGGREGATION_INTERVAL")
	viper.BindEnv("alerts.cooldown", "SMD_ALERT_COOLDOWN")
	viper.BindEnv("alerts.mqtt.host", "SMD_MQTT_HOST")
	viper.BindEnv("alerts.mqtt.port", "SMD_MQTT_PORT")
	viper.BindEnv("incidents.apiBaseUrl", "SMD_INCIDENT_API_URL")
	viper.BindEnv("incidents.minio.accessKey", "SMD_MINIO_ACCESS_KEY")
	viper.BindEnv("incidents.minio.secretKey", "SMD_MINIO_SECRET_KEY")
	viper.BindEnv("cache.enabled", "SMD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "SMD_CACHE_SIZE")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = "SafetyMonitorDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
