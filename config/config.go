// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Replicator transport seçenekleri.
const (
	TransportLocal = "local"
	TransportRedis = "redis"
	TransportNATS  = "nats"
	TransportNone  = "none"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	LiveKit    LiveKitConfig
	Voice      VoiceConfig
	Replicator ReplicatorConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // CORS + WebSocket origin kontrolü; boş = hepsi
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/nexus.db)
}

// JWTConfig, access token doğrulama ayarları.
// Token'ları harici backend imzalar; burada sadece paylaşılan secret var.
type JWTConfig struct {
	Secret string
}

// LiveKitConfig, LiveKit SFU server ayarları.
type LiveKitConfig struct {
	URL           string // ör: ws://localhost:7880
	APIKey        string
	APISecret     string
	TokenValidFor time.Duration
	// DataChannel, hail mesajlarının LiveKit data paketleriyle de yayınlanıp yayınlanmayacağı.
	DataChannel bool
}

// VoiceConfig, session ve transmit authority zamanlamaları.
type VoiceConfig struct {
	TxTTL              time.Duration
	TxRenewOnHeartbeat bool
	SessionTTL         time.Duration
	SweepInterval      time.Duration
	HailRateMax        int
	HailRateWindow     time.Duration
	HailRateCooldown   time.Duration
	NetCacheTTL        time.Duration
	CommandBusMax      int
}

// ReplicatorConfig, instance'lar arası state senkronizasyonu ayarları.
type ReplicatorConfig struct {
	Transport  string // local | redis | nats | none
	RedisURL   string
	NATSURL    string
	Channel    string // redis channel / nats subject
	InstanceID string
}

// LogConfig, zap logger ayarları.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // json | console
}

// MetricsConfig, Prometheus endpoint ayarları.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
func Load() (*Config, error) {
	// .env dosyası yoksa hata vermez, sessizce devam eder.
	_ = godotenv.Load()

	p := &parser{}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           p.intVar("SERVER_PORT", "9090"),
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/nexus.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
		},
		LiveKit: LiveKitConfig{
			URL:           getEnv("LIVEKIT_URL", "ws://localhost:7880"),
			APIKey:        getEnv("LIVEKIT_API_KEY", ""),
			APISecret:     getEnv("LIVEKIT_API_SECRET", ""),
			TokenValidFor: p.durationVar("LIVEKIT_TOKEN_VALID_FOR", "24h"),
			DataChannel:   p.boolVar("LIVEKIT_DATA_CHANNEL", "false"),
		},
		Voice: VoiceConfig{
			TxTTL:              p.durationVar("VOICE_TX_TTL", "30s"),
			TxRenewOnHeartbeat: p.boolVar("VOICE_TX_RENEW_ON_HEARTBEAT", "false"),
			SessionTTL:         p.durationVar("VOICE_SESSION_TTL", "90s"),
			SweepInterval:      p.durationVar("VOICE_SESSION_SWEEP_INTERVAL", "15s"),
			HailRateMax:        p.intVar("HAIL_RATE_MAX", "3"),
			HailRateWindow:     p.durationVar("HAIL_RATE_WINDOW", "10s"),
			HailRateCooldown:   p.durationVar("HAIL_RATE_COOLDOWN", "30s"),
			NetCacheTTL:        p.durationVar("NET_CACHE_TTL", "1m"),
			CommandBusMax:      p.intVar("COMMAND_BUS_MAX", "50"),
		},
		Replicator: ReplicatorConfig{
			Transport:  strings.ToLower(getEnv("REPLICATOR_TRANSPORT", TransportLocal)),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
			NATSURL:    getEnv("NATS_URL", "nats://localhost:4222"),
			Channel:    getEnv("REPLICATOR_CHANNEL", "nexus.state"),
			InstanceID: getEnv("INSTANCE_ID", uuid.NewString()),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Metrics: MetricsConfig{
			Enabled: p.boolVar("METRICS_ENABLED", "true"),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if p.err != nil {
		return nil, p.err
	}

	switch cfg.Replicator.Transport {
	case TransportLocal, TransportRedis, TransportNATS, TransportNone:
	default:
		return nil, fmt.Errorf("invalid REPLICATOR_TRANSPORT: %q", cfg.Replicator.Transport)
	}
	if cfg.Voice.TxTTL <= 0 || cfg.Voice.SessionTTL <= 0 || cfg.Voice.SweepInterval <= 0 {
		return nil, fmt.Errorf("voice timeouts must be positive")
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// parser, sayısal env değerlerini okur ve ilk hatayı saklar.
type parser struct {
	err error
}

func (p *parser) intVar(key, fallback string) int {
	v, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) boolVar(key, fallback string) bool {
	v, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) durationVar(key, fallback string) time.Duration {
	v, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
