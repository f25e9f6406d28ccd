// Package config defines the server's merged configuration schema and the
// koanf-based loader that builds an immutable ServerConfig snapshot from
// defaults, a config file, and environment variables, in that precedence
// order (adapted from the teacher's internal/config/loader.go, generalized
// from one flat app/db/otel/log schema to the server/security/cache/cluster/
// requestManagement/multiServer/notFound sections this framework needs).
package config

import "time"

// ServerConfig is the single source of truth at runtime. Every component
// (router, cache, rate limiter, cluster supervisor, lifecycle controller)
// reads its settings from the relevant section of one merged snapshot
// instead of its own ad hoc flags.
type ServerConfig struct {
	Server            ServerSection            `koanf:"server"`
	Security          SecuritySection          `koanf:"security"`
	Cache             CacheSection             `koanf:"cache"`
	Cluster           ClusterSection           `koanf:"cluster"`
	RequestManagement RequestManagementSection `koanf:"requestManagement"`
	MultiServer       MultiServerSection       `koanf:"multiServer"`
	NotFound          NotFoundSection          `koanf:"notFound"`
	Log               LogSection               `koanf:"log"`
	Observability     ObservabilitySection     `koanf:"observability"`
}

// ServerSection controls listening behavior and body-size limits.
type ServerSection struct {
	Host            string         `koanf:"host" validate:"required"`
	Port            int            `koanf:"port" validate:"min=0,max=65535"`
	TrustProxy      bool           `koanf:"trustProxy"`
	AutoParseJSON   bool           `koanf:"autoParseJson"`
	JSONLimit       string         `koanf:"jsonLimit"`
	URLEncodedLimit string         `koanf:"urlEncodedLimit"`
	AutoPortSwitch  AutoPortSwitch `koanf:"autoPortSwitch"`
}

// AutoPortSwitch configures PortAcquirer fallback behavior when the
// configured port is already bound.
type AutoPortSwitch struct {
	Enabled     bool   `koanf:"enabled"`
	MaxAttempts int    `koanf:"maxAttempts" validate:"min=0,max=1000"`
	Strategy    string `koanf:"strategy" validate:"omitempty,oneof=random increment"`
}

// SecuritySection configures the full security middleware stack.
type SecuritySection struct {
	Enabled       bool             `koanf:"enabled"`
	Level         string           `koanf:"level" validate:"omitempty,oneof=basic enhanced maximum"`
	CSRF          bool             `koanf:"csrf"`
	Helmet        bool             `koanf:"helmet"`
	XSS           bool             `koanf:"xss"`
	SQLInjection  bool             `koanf:"sqlInjection"`
	BruteForce    bool             `koanf:"bruteForce"`
	Compression   bool             `koanf:"compression"`
	HPP           bool             `koanf:"hpp"`
	HPPWhitelist  []string         `koanf:"hppWhitelist"`
	MongoSanitize bool             `koanf:"mongoSanitize"`
	Morgan        bool             `koanf:"morgan"`
	SlowDown      bool             `koanf:"slowDown"`
	SlowDownCfg   SlowDownSection  `koanf:"slowDownConfig"`
	CSP           string           `koanf:"csp"`
	CORS          CORSSection      `koanf:"cors"`
	RateLimit     RateLimitSection `koanf:"rateLimit"`
	BearerAuth    BearerAuthSection `koanf:"bearerAuth"`
}

// BearerAuthSection configures the optional JWT bearer-token verification
// stage. When Enabled, a valid token's subject claim becomes the rate
// limiter's per-user scope (security.AttrUserID); an invalid or missing
// token is not itself rejected here — downstream handlers that require
// authentication check AttrUserID themselves.
type BearerAuthSection struct {
	Enabled    bool   `koanf:"enabled"`
	Secret     string `koanf:"secret"`
	HeaderName string `koanf:"headerName"`
}

// SlowDownSection configures the incremental per-request delay applied once
// an IP exceeds delayAfter requests within the rate-limit window.
type SlowDownSection struct {
	DelayAfter int `koanf:"delayAfter"`
	BaseDelay  int `koanf:"baseDelayMs"`
	MaxDelay   int `koanf:"maxDelayMs"`
}

// CORSSection configures cross-origin request handling. Enabled mirrors the
// spec's `cors=true|{...}` union: when the section is absent the stack
// still applies permissive defaults as long as Enabled is true.
type CORSSection struct {
	Enabled        bool     `koanf:"enabled"`
	Origin         []string `koanf:"origin"`
	Methods        []string `koanf:"methods"`
	AllowedHeaders []string `koanf:"allowedHeaders"`
	Credentials    bool     `koanf:"credentials"`
	MaxAge         int      `koanf:"maxAge"`
}

// RateLimitSection configures the fixed-window limiter applied per scope.
type RateLimitSection struct {
	WindowMS    int      `koanf:"windowMs"`
	Max         int      `koanf:"max" validate:"min=0"`
	ExemptPaths []string `koanf:"exemptPaths"`
	HeadersOn   bool     `koanf:"headersOn"`
}

// CacheSection configures the tiered response cache.
type CacheSection struct {
	Strategy             string        `koanf:"strategy" validate:"omitempty,oneof=memory redis"`
	MaxSize              int           `koanf:"maxSize" validate:"min=0"`
	MaxMemoryBytes       int64         `koanf:"maxMemoryBytes" validate:"min=0"`
	TTL                  time.Duration `koanf:"ttl"`
	CompressionThreshold int           `koanf:"compressionThreshold"`
	RedisAddr            string        `koanf:"redisAddr"`
}

// ClusterSection configures multi-process worker clustering.
type ClusterSection struct {
	Enabled           bool                     `koanf:"enabled"`
	Workers           string                   `koanf:"workers"`
	AutoScaling       AutoScalingSection       `koanf:"autoScaling"`
	ProcessManagement ProcessManagementSection `koanf:"processManagement"`
	HealthCheck       HealthCheckSection       `koanf:"healthCheck"`
}

// AutoScalingSection configures the metric-driven worker-count controller.
type AutoScalingSection struct {
	Enabled            bool           `koanf:"enabled"`
	MinWorkers         int            `koanf:"minWorkers" validate:"min=0"`
	MaxWorkers         int            `koanf:"maxWorkers" validate:"min=0"`
	ScaleUpThreshold   ScaleThreshold `koanf:"scaleUpThreshold"`
	ScaleDownThreshold ScaleThreshold `koanf:"scaleDownThreshold"`
	CooldownPeriod     time.Duration  `koanf:"cooldownPeriod"`
	ScaleStep          int            `koanf:"scaleStep" validate:"min=1"`
}

// ScaleThreshold holds the metric bounds that trigger a scale decision.
type ScaleThreshold struct {
	CPU          float64       `koanf:"cpu"`
	Memory       float64       `koanf:"memory"`
	ResponseTime time.Duration `koanf:"responseTime"`
	QueueLength  int           `koanf:"queueLength"`
	IdleTime     time.Duration `koanf:"idleTime"`
}

// ProcessManagementSection configures worker respawn behavior.
type ProcessManagementSection struct {
	Respawn                 bool          `koanf:"respawn"`
	MaxRestarts             int           `koanf:"maxRestarts" validate:"min=0"`
	RestartDelay            time.Duration `koanf:"restartDelay"`
	GracefulShutdownTimeout time.Duration `koanf:"gracefulShutdownTimeout"`
}

// HealthCheckSection configures worker heartbeat monitoring.
type HealthCheckSection struct {
	Interval    time.Duration `koanf:"interval"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxFailures int           `koanf:"maxFailures" validate:"min=0"`
}

// RequestManagementSection configures per-request timeout and admission
// control.
type RequestManagementSection struct {
	Timeout     TimeoutSection     `koanf:"timeout"`
	Concurrency ConcurrencySection `koanf:"concurrency"`
}

// TimeoutSection configures the global default and per-route overrides.
type TimeoutSection struct {
	DefaultTimeout time.Duration            `koanf:"defaultTimeout"`
	Routes         map[string]time.Duration `koanf:"routes"`
}

// ConcurrencySection bounds in-flight request admission.
type ConcurrencySection struct {
	MaxConcurrentRequests int `koanf:"maxConcurrentRequests" validate:"min=0"`
	MaxPerIP              int `koanf:"maxPerIP" validate:"min=0"`
}

// MultiServerSection configures independent HttpServer instances sharing
// one process.
type MultiServerSection struct {
	Enabled bool             `koanf:"enabled"`
	Servers []ServerInstance `koanf:"servers" validate:"dive"`
}

// ServerInstance is one entry of MultiServerSection.Servers.
type ServerInstance struct {
	ID            string   `koanf:"id" validate:"required"`
	Port          int      `koanf:"port" validate:"min=1,max=65535"`
	Host          string   `koanf:"host"`
	RoutePrefix   string   `koanf:"routePrefix"`
	AllowedRoutes []string `koanf:"allowedRoutes"`
}

// NotFoundSection configures the 404 response renderer.
type NotFoundSection struct {
	Enabled    bool   `koanf:"enabled"`
	Title      string `koanf:"title"`
	Message    string `koanf:"message"`
	Theme      string `koanf:"theme"`
	RedirectTo string `koanf:"redirectTo"`
	Contact    string `koanf:"contact"`
}

// LogSection configures structured logging, carried as an ambient concern
// regardless of which domain features are enabled.
type LogSection struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// ObservabilitySection configures the optional OpenTelemetry exporter.
type ObservabilitySection struct {
	ExporterEndpoint string `koanf:"exporterOtlpEndpoint"`
	ServiceName      string `koanf:"serviceName"`
}
