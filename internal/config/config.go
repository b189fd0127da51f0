package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	LogFormat   string            `json:"log_format" yaml:"log_format"`
	Scan        ScanConfig        `json:"scan" yaml:"scan"`
	Ingest      IngestConfig      `json:"ingest" yaml:"ingest"`
	Debounce    DebounceConfig    `json:"debounce" yaml:"debounce"`
	Dispatch    DispatchConfig    `json:"dispatch" yaml:"dispatch"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Workers     WorkersConfig     `json:"workers" yaml:"workers"`
	API         APIConfig         `json:"api" yaml:"api"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Devices     DevicesConfig     `json:"devices" yaml:"devices"`
	DispatchLog DispatchLogConfig `json:"dispatch_log" yaml:"dispatch_log"`
}

type ScanConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Adapter string        `json:"adapter" yaml:"adapter"`
	Window  time.Duration `json:"window" yaml:"window"`
	Idle    time.Duration `json:"idle" yaml:"idle"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	REST          RESTConfig      `json:"rest" yaml:"rest"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
	FileTail      FileTailConfig  `json:"file_tail" yaml:"file_tail"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	MQTT          MQTTConfig      `json:"mqtt" yaml:"mqtt"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type FileTailConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	StartAtEnd bool     `json:"start_at_end" yaml:"start_at_end"`
	Files      []string `json:"files" yaml:"files"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type MQTTConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Topic    string `json:"topic" yaml:"topic"`
	QoS      byte   `json:"qos" yaml:"qos"`
}

type DebounceConfig struct {
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval"`
}

type DispatchConfig struct {
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	GravityPath  string        `json:"gravity_path" yaml:"gravity_path"`
	PressurePath string        `json:"pressure_path" yaml:"pressure_path"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
	RaptEnabled  bool          `json:"rapt_enabled" yaml:"rapt_enabled"`
}

type CacheConfig struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

type WorkersConfig struct {
	Count     int `json:"count" yaml:"count"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type DevicesConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

type DispatchLogConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

const (
	DefaultMinInterval  = 300 * time.Second
	DefaultCacheTTL     = 6 * time.Hour
	DefaultGravityPath  = "/api/gravity/public"
	DefaultPressurePath = "/api/pressure/public"
)

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Scan: ScanConfig{
			Enabled: true,
			Adapter: "hci0",
			Window:  10 * time.Second,
			Idle:    500 * time.Millisecond,
		},
		Ingest: IngestConfig{
			ChannelBuffer: 1000,
			REST:          RESTConfig{Enabled: false, Addr: ":8090"},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":9000"},
			FileTail:      FileTailConfig{Enabled: false, StartAtEnd: true},
			Kafka:         KafkaConfig{Enabled: false},
			MQTT:          MQTTConfig{Enabled: false, Broker: "tcp://localhost:1883", Topic: "brewble/advertisements/#"},
		},
		Debounce: DebounceConfig{MinInterval: DefaultMinInterval},
		Dispatch: DispatchConfig{
			GravityPath:  DefaultGravityPath,
			PressurePath: DefaultPressurePath,
			Timeout:      10 * time.Second,
		},
		Cache: CacheConfig{
			TTL:     DefaultCacheTTL,
			Timeout: 2 * time.Second,
		},
		Workers: WorkersConfig{Count: 1, QueueSize: 256},
		API:     APIConfig{Enabled: true, Addr: ":8081"},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:brewble.db?_pragma=busy_timeout(5000)"},
		Devices: DevicesConfig{StoreLimit: 500},
		DispatchLog: DispatchLogConfig{
			StoreLimit: 1000,
		},
	}
}

// Load reads a YAML or JSON config file, applies environment overrides and
// validates the result. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(string(content))
		if len(trimmed) == 0 {
			return nil, errors.New("config file is empty")
		}
		var decodeErr error
		if looksLikeJSON(trimmed) {
			decodeErr = json.Unmarshal([]byte(trimmed), cfg)
		} else {
			decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
		}
		if decodeErr != nil {
			return nil, decodeErr
		}
	}
	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

// applyEnv honours the variables used by the container deployment.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("API_URL")); v != "" {
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			cfg.Dispatch.BaseURL = v
		} else {
			cfg.Dispatch.BaseURL = "http://" + v
		}
	}
	if v := strings.TrimSpace(getenv("MIN_INTERVAL")); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return fmt.Errorf("invalid MIN_INTERVAL %q", v)
		}
		cfg.Debounce.MinInterval = time.Duration(sec) * time.Second
	}
	if v := strings.TrimSpace(getenv("REDIS_HOST")); v != "" {
		if !strings.Contains(v, ":") {
			v += ":6379"
		}
		cfg.Cache.Addr = v
	}
	if v := strings.TrimSpace(getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Scan.Window <= 0 {
		cfg.Scan.Window = 10 * time.Second
	}
	if cfg.Scan.Idle <= 0 {
		cfg.Scan.Idle = 500 * time.Millisecond
	}
	if cfg.Scan.Adapter == "" {
		cfg.Scan.Adapter = "hci0"
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 1000
	}
	if cfg.Dispatch.GravityPath == "" {
		cfg.Dispatch.GravityPath = DefaultGravityPath
	}
	if cfg.Dispatch.PressurePath == "" {
		cfg.Dispatch.PressurePath = DefaultPressurePath
	}
	if cfg.Dispatch.Timeout <= 0 {
		cfg.Dispatch.Timeout = 10 * time.Second
	}
	cfg.Dispatch.BaseURL = strings.TrimRight(cfg.Dispatch.BaseURL, "/")
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.Timeout <= 0 {
		cfg.Cache.Timeout = 2 * time.Second
	}
	if cfg.Workers.Count <= 0 {
		cfg.Workers.Count = 1
	}
	if cfg.Workers.QueueSize <= 0 {
		cfg.Workers.QueueSize = 256
	}
	if cfg.Devices.StoreLimit <= 0 {
		cfg.Devices.StoreLimit = 500
	}
	if cfg.DispatchLog.StoreLimit <= 0 {
		cfg.DispatchLog.StoreLimit = 1000
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
}

func Validate(cfg *Config) error {
	if cfg.Debounce.MinInterval < 0 {
		return errors.New("debounce.min_interval must be >= 0")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.FileTail.Enabled && len(cfg.Ingest.FileTail.Files) == 0 {
		return errors.New("ingest.file_tail.files required when ingest.file_tail.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.MQTT.Enabled {
		if cfg.Ingest.MQTT.Broker == "" || cfg.Ingest.MQTT.Topic == "" {
			return errors.New("ingest.mqtt requires broker and topic")
		}
		if cfg.Ingest.MQTT.QoS > 2 {
			return fmt.Errorf("ingest.mqtt.qos must be 0, 1 or 2: %d", cfg.Ingest.MQTT.QoS)
		}
	}
	if cfg.Dispatch.BaseURL != "" && !strings.HasPrefix(cfg.Dispatch.BaseURL, "http://") && !strings.HasPrefix(cfg.Dispatch.BaseURL, "https://") {
		return fmt.Errorf("dispatch.base_url must be an http(s) URL: %q", cfg.Dispatch.BaseURL)
	}
	if cfg.Storage.Enabled {
		switch strings.ToLower(cfg.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return fmt.Errorf("storage.driver unsupported: %q", cfg.Storage.Driver)
		}
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("log_format must be json or console: %q", cfg.LogFormat)
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime atomic.Value
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	m.touch()
	return m, nil
}

// NewStaticManager wraps an already built config. It never reloads.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	m.touch()
	return cfg, nil
}

// Update persists cfg when the manager is file backed and swaps it in.
func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
	}
	m.cfg.Store(cfg)
	m.touch()
	return nil
}

func (m *Manager) touch() {
	if m.path == "" {
		return
	}
	if info, err := os.Stat(m.path); err == nil {
		m.modTime.Store(info.ModTime())
	}
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	last, _ := m.modTime.Load().(time.Time)
	return info.ModTime().After(last), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
