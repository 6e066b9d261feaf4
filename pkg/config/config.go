package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type GatewayConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

type APIConfig struct {
	Port            string
	DBDSN           string
	RMQURL          string
	EventsQueue     string
	OptInSecret     string
	StartingBalance int
}

type DispatcherConfig struct {
	DBDSN           string
	RMQURL          string
	EventsQueue     string
	PollInterval    time.Duration
	SendConcurrency int
	SendTimeout     time.Duration
	Gateway         GatewayConfig
}

var (
	API        APIConfig
	Dispatcher DispatcherConfig
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("env %s: %v", k, err)
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("env %s: %v", k, err)
	}
	return d
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("required env %s is not set", k)
	}
	return v
}

func MustLoadAPI() {
	_ = godotenv.Load()
	API = APIConfig{
		Port:            getenv("PORT", "8080"),
		DBDSN:           mustEnv("DB_DSN"),
		RMQURL:          getenv("RMQ_URL", ""),
		EventsQueue:     getenv("EVENTS_QUEUE", "delivery_events"),
		OptInSecret:     mustEnv("OPT_IN_SECRET"),
		StartingBalance: getenvInt("STARTING_BALANCE", 500),
	}
}

func MustLoadDispatcher() {
	_ = godotenv.Load()
	Dispatcher = DispatcherConfig{
		DBDSN:           mustEnv("DB_DSN"),
		RMQURL:          getenv("RMQ_URL", ""),
		EventsQueue:     getenv("EVENTS_QUEUE", "delivery_events"),
		PollInterval:    getenvDuration("POLL_INTERVAL", 15*time.Second),
		SendConcurrency: getenvInt("SEND_CONCURRENCY", 8),
		SendTimeout:     getenvDuration("SEND_TIMEOUT", 10*time.Second),
		Gateway: GatewayConfig{
			AccountSID: mustEnv("GATEWAY_ACCOUNT_SID"),
			AuthToken:  mustEnv("GATEWAY_AUTH_TOKEN"),
			FromNumber: mustEnv("GATEWAY_FROM_NUMBER"),
			BaseURL:    getenv("GATEWAY_BASE_URL", "https://api.twilio.com"),
		},
	}
}
