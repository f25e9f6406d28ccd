package config

import "time"

// Defaults returns the built-in ServerConfig baseline. It is loaded first
// by Load and then overridden by file and environment values, so every
// field here is the value a caller gets when they configure nothing.
func Defaults() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Host:            "localhost",
			Port:            8085,
			TrustProxy:      false,
			AutoParseJSON:   true,
			JSONLimit:       "10mb",
			URLEncodedLimit: "10mb",
			AutoPortSwitch: AutoPortSwitch{
				Enabled:     false,
				MaxAttempts: 10,
				Strategy:    "random",
			},
		},
		Security: SecuritySection{
			Enabled:       true,
			Level:         "basic",
			CSRF:          true,
			Helmet:        true,
			XSS:           true,
			SQLInjection:  true,
			BruteForce:    true,
			Compression:   true,
			HPP:           true,
			HPPWhitelist:  []string{},
			MongoSanitize: true,
			Morgan:        true,
			SlowDown:      true,
			SlowDownCfg: SlowDownSection{
				DelayAfter: 100,
				BaseDelay:  100,
				MaxDelay:   5000,
			},
			CSP: "default-src 'self'",
			CORS: CORSSection{
				Enabled: true,
				Methods: []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				MaxAge:  600,
			},
			RateLimit: RateLimitSection{
				WindowMS:    900000,
				Max:         rateLimitMaxForLevel("basic"),
				ExemptPaths: []string{"/health", "/ping"},
				HeadersOn:   true,
			},
			BearerAuth: BearerAuthSection{
				Enabled:    false,
				HeaderName: "Authorization",
			},
		},
		Cache: CacheSection{
			Strategy:             "memory",
			MaxSize:              1000,
			MaxMemoryBytes:       64 * 1024 * 1024,
			TTL:                  300 * time.Second,
			CompressionThreshold: 1024,
		},
		Cluster: ClusterSection{
			Enabled: false,
			Workers: "auto",
			AutoScaling: AutoScalingSection{
				Enabled:        false,
				MinWorkers:     1,
				MaxWorkers:     8,
				CooldownPeriod: 300 * time.Second,
				ScaleStep:      1,
			},
			ProcessManagement: ProcessManagementSection{
				Respawn:                 true,
				MaxRestarts:             5,
				RestartDelay:            time.Second,
				GracefulShutdownTimeout: 10 * time.Second,
			},
			HealthCheck: HealthCheckSection{
				Interval:    5 * time.Second,
				Timeout:     2 * time.Second,
				MaxFailures: 3,
			},
		},
		RequestManagement: RequestManagementSection{
			Timeout: TimeoutSection{
				DefaultTimeout: 30 * time.Second,
			},
			Concurrency: ConcurrencySection{
				MaxConcurrentRequests: 0,
				MaxPerIP:              0,
			},
		},
		MultiServer: MultiServerSection{
			Enabled: false,
		},
		NotFound: NotFoundSection{
			Enabled: true,
			Title:   "404 Not Found",
			Message: "The requested resource could not be found.",
			Theme:   "default",
		},
		Log: LogSection{
			Level:  "info",
			Format: "json",
		},
	}
}

// rateLimitMaxForLevel returns the default request ceiling per security
// level, tightening as the level escalates.
func rateLimitMaxForLevel(level string) int {
	switch level {
	case "maximum":
		return 100
	case "enhanced":
		return 300
	default:
		return 1000
	}
}
