package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type CameraDescriptor struct {
	ID       string `yaml:"id" json:"id" validate:"required"`
	Name     string `yaml:"name" json:"name" validate:"required"`
	Location string `yaml:"location" json:"location"`
	Status   string `yaml:"status" json:"status" validate:"in:active,inactive,maintenance"`
}

type MonitorConfig struct {
	BackendURL          string             `yaml:"backendUrl" validate:"required"`
	ViolationPolicy     string             `yaml:"violationPolicy" validate:"required|in:edge,total"`
	AggregationInterval time.Duration      `yaml:"aggregationInterval" validate:"required|min:1"`
	Cameras             []CameraDescriptor `yaml:"cameras"`
}

type RecordingConfig struct {
	Dir        string `yaml:"dir" validate:"required|unixPath"`
	FFmpegPath string `yaml:"ffmpegPath"`
	FrameRate  int    `yaml:"frameRate"`
}

type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"clientId"`
	BaseTopic string `yaml:"baseTopic"`
}

type AlertsConfig struct {
	Cooldown        time.Duration `yaml:"cooldown"`
	PreferencesPath string        `yaml:"preferencesPath" validate:"required|unixPath"`
	SaveInterval    time.Duration `yaml:"saveInterval" validate:"required|min:1"`
	MQTT            MQTTConfig    `yaml:"mqtt"`
}

type ArchiveConfig struct {
	Dir           string        `yaml:"dir" validate:"required|unixPath"`
	FlushInterval time.Duration `yaml:"flushInterval" validate:"required|min:1"`
}

type MinioConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"useSSL"`
	PublicBaseURL string `yaml:"publicBaseUrl"`
}

type IncidentsConfig struct {
	APIBaseURL string        `yaml:"apiBaseUrl"`
	Timeout    time.Duration `yaml:"timeout"`
	Minio      MinioConfig   `yaml:"minio"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName   string
	Debug     bool
	Path      string
	Monitor   MonitorConfig   `yaml:"monitor"`
	Recording RecordingConfig `yaml:"recording"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Incidents IncidentsConfig `yaml:"incidents"`
	WebServer Server          `yaml:"webServer"`
	Logger    LoggerConfig    `yaml:"logger"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type CliFlags struct {
	ConfigPath string
	DebugMode  bool
}
