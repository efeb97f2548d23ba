package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		History:   DefaultHistoryConfig(),
		Providers: DefaultProvidersConfig(),
		Stream:    DefaultStreamConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // streams must not be cut off
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"*"},
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Name:            "imageflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    100,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     "localhost:6379",
		PoolSize: 10,
	}
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend:    "database",
		MaxEntries: 1000,
	}
}

func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		UpstreamTimeout:   120 * time.Second,
		MaxConcurrent:     8,
		RequestsPerSecond: 0, // unlimited
		Burst:             1,
	}
}

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ProgressDelay: 500 * time.Millisecond,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "imageflow",
		SampleRate:   1.0,
	}
}
