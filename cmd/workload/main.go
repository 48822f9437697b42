package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/ruteri/tee-model-workload/cmd/flags"
	"github.com/ruteri/tee-model-workload/common"
	"github.com/ruteri/tee-model-workload/cryptoutils"
	"github.com/ruteri/tee-model-workload/envelope"
	"github.com/ruteri/tee-model-workload/httpserver"
	"github.com/ruteri/tee-model-workload/interfaces"
	"github.com/ruteri/tee-model-workload/metrics"
	"github.com/ruteri/tee-model-workload/model"
	"github.com/ruteri/tee-model-workload/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "workload",
		Usage:   "Serve predictions from an encrypted model inside a TEE",
		Version: common.Version,
		Flags:   append(append([]cli.Flag{}, flags.CommonFlags...), flags.WorkloadFlags...),
		Action:  runWorkload,
	}

	if err := app.Run(os.Args); err != nil {
		memguard.Purge()
		log.Fatal(err)
	}
}

func runWorkload(cCtx *cli.Context) error {
	defer memguard.Purge()

	logger := flags.SetupLogger(cCtx)

	if cCtx.Bool(flags.LockMemoryFlag.Name) {
		if err := lockMemory(); err != nil {
			logger.Error("Failed to lock process memory", "err", err)
			return err
		}
		logger.Info("Process memory locked")
	} else {
		logger.Warn("Process memory not locked, only secret buffers are protected from swap")
	}

	aead, err := envelope.AEADByName(cCtx.String(flags.AEADFlag.Name))
	if err != nil {
		logger.Error("Invalid AEAD", "err", err)
		return err
	}

	backend, err := configureStorage(cCtx.StringSlice(flags.StorageFlag.Name), logger)
	if err != nil {
		logger.Error("Failed to configure storage", "err", err)
		return err
	}

	envelopeKey, err := loadEnvelopeKey(cCtx.String(flags.EnvelopeKeyFileFlag.Name))
	if err != nil {
		logger.Error("Failed to set up envelope key", "err", err)
		return err
	}

	attestation, err := cryptoutils.AttestationProviderFor(
		cCtx.String(flags.AttestationFlag.Name),
		cCtx.String(flags.AttestationRemoteAddrFlag.Name),
	)
	if err != nil {
		logger.Error("Invalid attestation provider", "err", err)
		return err
	}

	manager := model.NewManager(envelope.NewUnwrapper(aead, logger), logger)
	handler := httpserver.NewHandler(manager, backend, envelopeKey, attestation, logger)

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
	server, err := httpserver.New(cfg, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}

	observer, err := metrics.NewModelObserver(server.Metrics().Namespace(), server.Metrics().Registry())
	if err != nil {
		logger.Error("Failed to register model metrics", "err", err)
		return err
	}
	manager.WithObserver(observer)

	logger.Info("Starting workload",
		slog.String("aead", aead.Name()),
		slog.String("attestation", string(attestation.AttestationType())))
	server.RunInBackground()

	// Wait for termination signal
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutdown signal received")

	server.Drain()
	server.Shutdown()
	manager.Reset()
	logger.Info("Workload shutdown complete")
	return nil
}

func configureStorage(uris []string, logger *slog.Logger) (interfaces.StorageBackend, error) {
	if len(uris) == 0 {
		logger.Info("No artifact storage configured, artifacts must be sent inline")
		return nil, nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}

	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}

func loadEnvelopeKey(path string) (*cryptoutils.EnvelopeKey, error) {
	if path == "" {
		return cryptoutils.NewEnvelopeKey()
	}

	keyPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read envelope key: %w", err)
	}
	defer memguard.WipeBytes(keyPEM)

	return cryptoutils.ParseEnvelopeKey(keyPEM)
}
