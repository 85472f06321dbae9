package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	API     APIConfig
	Channel ChannelConfig
	Engine  EngineConfig
	Observ  ObservabilityConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type APIConfig struct {
	BaseURL        string
	RestaurantID   string
	Token          string
	TimeoutSeconds int
}

type ChannelConfig struct {
	// Transport selects the push source: websocket, kafka, redis or poll.
	Transport           string
	WebSocketURL        string
	KafkaBrokers        []string
	KafkaGroup          string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	PollIntervalSeconds int
}

type EngineConfig struct {
	Surface    string
	HistoryCap int
	TrackKPI   bool
}

type ObservabilityConfig struct {
	JaegerEndpoint string
}

func Load() *Config {
	_ = godotenv.Load()

	timeout, _ := strconv.Atoi(getEnv("API_TIMEOUT_SECONDS", "12"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	pollInterval, _ := strconv.Atoi(getEnv("POLL_INTERVAL_SECONDS", "30"))
	historyCap, _ := strconv.Atoi(getEnv("HISTORY_CAP", "5"))
	trackKPI, _ := strconv.ParseBool(getEnv("TRACK_KPI", "false"))

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("ENV", "development"),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:5000/api"),
			RestaurantID:   getEnv("RESTAURANT_ID", ""),
			Token:          getEnv("API_TOKEN", ""),
			TimeoutSeconds: timeout,
		},
		Channel: ChannelConfig{
			Transport:           getEnv("CHANNEL_TRANSPORT", "websocket"),
			WebSocketURL:        getEnv("CHANNEL_WS_URL", "ws://localhost:5000/kitchenHub"),
			KafkaBrokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			KafkaGroup:          getEnv("KAFKA_CONSUMER_GROUP", "boardsync"),
			RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:       getEnv("REDIS_PASSWORD", ""),
			RedisDB:             redisDB,
			PollIntervalSeconds: pollInterval,
		},
		Engine: EngineConfig{
			Surface:    getEnv("SURFACE", "kitchen"),
			HistoryCap: historyCap,
			TrackKPI:   trackKPI,
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
		},
	}

	log.Printf("Config loaded: env=%s, surface=%s, transport=%s",
		cfg.Server.Env, cfg.Engine.Surface, cfg.Channel.Transport)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
