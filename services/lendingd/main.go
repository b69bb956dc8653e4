package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	lendingv1 "microlend/api/lending/v1"
	nodecfg "microlend/config"
	"microlend/core"
	"microlend/core/events"
	"microlend/core/genesis"
	nativecommon "microlend/native/common"
	"microlend/network"
	"microlend/observability"
	"microlend/observability/logging"
	telemetry "microlend/observability/otel"
	"microlend/services/lending/engine"
	"microlend/services/lending/indexer"
	lendingserver "microlend/services/lending/server"
	"microlend/services/lendingd/config"
	"microlend/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		log.Fatalf("lendingd: %v", err)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nodeCfg, err := nodecfg.Load(cfg.NodeConfig)
	if err != nil {
		return fmt.Errorf("load node config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("MICROLEND_ENV"))
	logger := logging.SetupWithOptions("lendingd", env, logging.Options{
		Level:      nodeCfg.Logging.Level,
		File:       nodeCfg.Logging.File,
		MaxSizeMB:  nodeCfg.Logging.MaxSizeMB,
		MaxBackups: nodeCfg.Logging.MaxBackups,
		MaxAgeDays: nodeCfg.Logging.MaxAgeDays,
		Compress:   nodeCfg.Logging.Compress,
	})
	logger.Info("configuration loaded", slog.Any("config", cfg.Sanitized()), slog.String("node_config", cfg.NodeConfig))

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("lendingd", env))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := storage.Open(nodeCfg.StorageBackend, nodeCfg.DataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	emitters := events.Multi{observability.Events()}
	var ix *indexer.Indexer
	if cfg.Indexer.DSN != "" {
		ix, err = indexer.Open(cfg.Indexer.DSN, logger)
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("open indexer: %w", err)
		}
		defer ix.Close()
		emitters = append(emitters, ix)
	}

	node, err := core.NewNode(db, nodeCfg.Lending,
		core.WithEmitter(emitters),
		core.WithPauses(nativecommon.NewPauseSet(nodeCfg.Global.PausedModules()...)),
		core.WithLogger(logger),
		core.WithLoanCacheSize(nodeCfg.LoanCacheSize),
	)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()

	if nodeCfg.GenesisFile != "" {
		spec, err := genesis.LoadGenesisSpec(resolvePath(cfg.NodeConfig, nodeCfg.GenesisFile))
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		applied, err := node.ApplyGenesis(spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis checked", slog.Bool("applied", applied), slog.Int("allocations", len(spec.Alloc)))
	}

	var nonces network.NonceStore
	if cfg.Caller.NonceStore != "" {
		store, err := network.OpenLevelDBNonceStore(cfg.Caller.NonceStore)
		if err != nil {
			return fmt.Errorf("open nonce store: %w", err)
		}
		defer store.Close()
		nonces = store
	}
	verifier := network.NewCallerVerifier(network.VerifierConfig{
		RequireSignature: cfg.RequireSignedCaller(),
		MaxSkew:          cfg.Caller.MaxSkew,
		Nonces:           nonces,
	})

	eng := engine.NewNodeAdapter(node, logger)
	grpcServer, err := newGRPCServer(cfg, eng, verifier, logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	if cfg.TLS.AllowInsecure {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			_ = listener.Close()
			return fmt.Errorf("plaintext lendingd mode is restricted to loopback listeners or dev environment")
		}
	}

	var httpServer *http.Server
	if cfg.Gateway.Enabled {
		var source EventSource
		if ix != nil {
			source = ix
		}
		httpServer, err = newGatewayServer(cfg.Gateway.Config, eng, verifier, source, logger)
		if err != nil {
			_ = listener.Close()
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go node.RunMiner(ctx, nodeCfg.BlockInterval())
	if nonces != nil {
		go pruneNonces(ctx, verifier, cfg.Caller.PruneEvery, logger)
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("lendingd listening", slog.String("address", cfg.ListenAddress))
		serverErr <- grpcServer.Serve(listener)
	}()
	if httpServer != nil {
		go func() {
			logger.Info("gateway listening", slog.String("address", httpServer.Addr))
			var err error
			if cfg.Gateway.Security.TLSCertFile != "" {
				err = httpServer.ListenAndServeTLS(cfg.Gateway.Security.TLSCertFile, cfg.Gateway.Security.TLSKeyFile)
			} else {
				err = httpServer.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			serverErr <- err
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("gateway shutdown", slog.Any("error", err))
		}
	}
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("forcing server stop")
		grpcServer.Stop()
	}
	return runErr
}

func newGRPCServer(cfg config.Config, eng engine.Engine, verifier *network.CallerVerifier, logger *slog.Logger) (*grpc.Server, error) {
	serverCfg := lendingserver.Config{
		TLS:              cfg.NetworkTLS(),
		MTLSRequired:     cfg.TLS.MTLSEnabled(),
		AllowedClientCNs: cfg.Auth.MTLS.AllowedCommonNames,
		RateLimitPerMin:  cfg.RateLimitPerMin,
		APITokens:        cfg.Auth.APITokens,
		Verifier:         verifier,
		Logger:           logger,
	}
	creds, err := lendingserver.GrpcServerCreds(serverCfg)
	if err != nil {
		return nil, fmt.Errorf("configure tls: %w", err)
	}
	options, err := lendingserver.Interceptors(serverCfg)
	if err != nil {
		return nil, fmt.Errorf("configure interceptors: %w", err)
	}
	server := grpc.NewServer(append([]grpc.ServerOption{creds}, options...)...)
	lendingv1.RegisterLendingServiceServer(server, lendingserver.New(eng, logger))
	return server, nil
}

func pruneNonces(ctx context.Context, verifier *network.CallerVerifier, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := verifier.PruneNonces(); err != nil {
				logger.Warn("prune envelope nonces", slog.Any("error", err))
			}
		}
	}
}

// resolvePath interprets rel relative to the directory of base.
func resolvePath(base, rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(filepath.Dir(base), rel)
}
