package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tee-model-workload/common"
	"github.com/ruteri/tee-model-workload/httpserver"
	"github.com/urfave/cli/v2"
)

// EnvPrefix prefixes the environment variable of every flag.
const EnvPrefix = "WORKLOAD_"

func envVars(name string) []string {
	return []string{EnvPrefix + name}
}

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *httpserver.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	Usage:   "log in JSON format",
	EnvVars: envVars("LOG_JSON"),
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	Usage:   "log debug messages",
	EnvVars: envVars("LOG_DEBUG"),
}
var LogUidFlag = &cli.BoolFlag{
	Name:    "log-uid",
	Value:   false,
	Usage:   "generate a uuid and add to all log messages",
	EnvVars: envVars("LOG_UID"),
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "log-service",
		Value:   service,
		Usage:   "add 'service' tag to logs",
		EnvVars: envVars("LOG_SERVICE"),
	}
}

var LogServiceFlag = LogServiceFlagFn(common.PackageName)

var PprofFlag = &cli.BoolFlag{
	Name:    "pprof",
	Value:   false,
	Usage:   "enable pprof debug endpoint",
	EnvVars: envVars("PPROF"),
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:    "drain-seconds",
	Value:   45,
	Usage:   "seconds to wait after marking the server not ready on shutdown",
	EnvVars: envVars("DRAIN_SECONDS"),
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	Usage:   "address to listen on for Prometheus metrics",
	EnvVars: envVars("METRICS_ADDR"),
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: envVars("LISTEN_ADDR"),
}

var AEADFlag = &cli.StringFlag{
	Name:    "aead",
	Value:   "aes-256-gcm",
	Usage:   "envelope AEAD: 'aes-256-gcm' or 'chacha20-poly1305'",
	EnvVars: envVars("AEAD"),
}

var StorageFlag = &cli.StringSliceFlag{
	Name:    "storage",
	Usage:   "artifact storage backend URI (file://, s3://, vault://, ipfs://), repeatable",
	EnvVars: envVars("STORAGE"),
}

var EnvelopeKeyFileFlag = &cli.StringFlag{
	Name:    "envelope-key-file",
	Usage:   "PEM EC private key used as envelope key. If empty an ephemeral key is generated",
	EnvVars: envVars("ENVELOPE_KEY_FILE"),
}

var AttestationFlag = &cli.StringFlag{
	Name:    "attestation",
	Value:   "dcap",
	Usage:   "attestation provider: 'dcap', 'remote' or 'dummy'",
	EnvVars: envVars("ATTESTATION"),
}

var AttestationRemoteAddrFlag = &cli.StringFlag{
	Name:    "attestation-remote-addr",
	Value:   "http://127.0.0.1:8082",
	Usage:   "quote provider address for the 'remote' attestation provider",
	EnvVars: envVars("ATTESTATION_REMOTE_ADDR"),
}

var LockMemoryFlag = &cli.BoolFlag{
	Name:    "lock-memory",
	Value:   false,
	Usage:   "lock all current and future process memory into RAM",
	EnvVars: envVars("LOCK_MEMORY"),
}

var WorkloadFlags = []cli.Flag{
	ListenAddrFlag,
	AEADFlag,
	StorageFlag,
	EnvelopeKeyFileFlag,
	AttestationFlag,
	AttestationRemoteAddrFlag,
	LockMemoryFlag,
}

var WorkloadAddrFlag = &cli.StringFlag{
	Name:    "workload-addr",
	Value:   "http://127.0.0.1:8080",
	Usage:   "workload API address",
	EnvVars: envVars("ADDR"),
}
