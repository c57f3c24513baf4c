// Package main wires gphotoctl's cobra command tree: "serve" loads
// configuration, opens the store, cache and RPC client, registers every
// provider adapter, starts the worker pool, and serves the HTTP API until a
// shutdown signal arrives; "migrate" applies schema changes and exits.
// Generalized from the teacher's cli/root.go cobra+viper root command and
// runServer startup sequence.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evalgo/gphotoctl/internal/adapters"
	"github.com/evalgo/gphotoctl/internal/cache"
	"github.com/evalgo/gphotoctl/internal/config"
	"github.com/evalgo/gphotoctl/internal/httpapi"
	"github.com/evalgo/gphotoctl/internal/logging"
	"github.com/evalgo/gphotoctl/internal/preview"
	"github.com/evalgo/gphotoctl/internal/resolver"
	"github.com/evalgo/gphotoctl/internal/rpcclient"
	"github.com/evalgo/gphotoctl/internal/store"
	"github.com/evalgo/gphotoctl/internal/worker"
)

// cfgFile holds the path to a config file given via --config. gphotoctl's
// settings are environment-variable driven (internal/config), so this flag
// only controls which dotenv-style file viper preloads into the process
// environment before LoadAppConfig runs.
var cfgFile string

var RootCmd = &cobra.Command{
	Use:   "gphotoctl",
	Short: "orchestrator for Google Photos bulk operations, pipelines and native-rpc calls",
	Long: `gphotoctl

An HTTP orchestrator that queues, previews and dispatches bulk-upload,
file-disguise, native-rpc, pipeline and indexer operations against
Google Photos accounts, with a Postgres job store and a Redis session
cache backing a small worker pool.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the HTTP API and worker pool",
	Run:   runServer,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "connect to Postgres and apply pending schema migrations, then exit",
	Run:   runMigrate,
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "dotenv-style config file (default: $HOME/.gphotoctl.env, ./.gphotoctl.env)")
	serveCmd.Flags().String("addr", "", "HTTP listen address, e.g. :8080")
	viper.BindPFlag("GPHOTOCTL_HTTP_ADDR", serveCmd.Flags().Lookup("addr"))
	RootCmd.AddCommand(serveCmd, migrateCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("env")
		viper.SetConfigName(".gphotoctl")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
		for _, key := range viper.AllKeys() {
			envKey := strings.ToUpper(key)
			if os.Getenv(envKey) == "" {
				os.Setenv(envKey, viper.GetString(key))
			}
		}
	}
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg := config.LoadAppConfig("GPHOTOCTL")
	if addr := viper.GetString("GPHOTOCTL_HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logging.Configure(cfg.LogLevel)
	logger := logging.ServiceLogger("gphotoctl", "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(store.Config{
		DatabaseURL:     cfg.Store.DatabaseURL,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}

	sessionCache, err := cache.NewSessionCache(ctx, cache.Config{
		RedisURL: cfg.Cache.RedisURL,
		TTL:      cfg.Cache.TTL,
	})
	if err != nil {
		logger.Fatalf("open session cache: %v", err)
	}
	defer sessionCache.Close()

	rpc := rpcclient.NewClient(rpcclient.Config{
		MaxRetries:     cfg.RPC.MaxRetries,
		RetryBaseDelay: cfg.RPC.RetryBaseDelay,
		CallTimeout:    cfg.RPC.CallTimeout,
	})

	registry := adapters.NewRegistry()
	nativeRPC := adapters.NewNativeRPCAdapter(rpc, st, sessionCache)
	disguise := adapters.NewFileDisguiseAdapter()
	bulkUpload := adapters.NewBulkUploadAdapter(st, nativeRPC)
	registry.Register(nativeRPC)
	registry.Register(disguise)
	registry.Register(bulkUpload)
	registry.Register(adapters.NewPipelineAdapter(disguise, bulkUpload))
	registry.Register(adapters.NewIndexerAdapter(st, nativeRPC))

	res := resolver.New(st)
	previews := preview.New(st, res, cfg.PreviewTTL)

	pool := worker.NewPool(st, registry, worker.Config{
		MaxWorkers:    cfg.Worker.MaxWorkers,
		PollInterval:  cfg.Worker.PollInterval,
		MaxPerAccount: cfg.Worker.MaxPerAccount,
	})
	pool.Start(ctx)
	defer pool.Stop()

	serverCfg := httpapi.DefaultServerConfig()
	serverCfg.ShutdownTimeout = cfg.HTTP.ShutdownTimeout
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.Port = httpapi.GetPortInt(portFromAddr(cfg.HTTP.Addr), serverCfg.Port)

	e := httpapi.NewRouter(serverCfg, &httpapi.Deps{
		Store:    st,
		Cache:    sessionCache,
		RPC:      rpc,
		Resolver: res,
		Previews: previews,
		Adapters: registry,
		Pool:     pool,
	})

	go func() {
		logger.Infof("gphotoctl listening on port %d", serverCfg.Port)
		if err := httpapi.StartServer(e, serverCfg); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Info("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := httpapi.GracefulShutdown(e, cfg.HTTP.ShutdownTimeout); err != nil {
		logger.WithError(err).Error("http shutdown failed")
	}
}

// runMigrate opens the store, which runs GORM's AutoMigrate for every
// owned model as a side effect of Open, and exits. It exists as its own
// subcommand so a deploy pipeline can apply schema changes before the
// serve command's worker pool starts claiming jobs against it.
func runMigrate(cmd *cobra.Command, args []string) {
	cfg := config.LoadAppConfig("GPHOTOCTL")
	logging.Configure(cfg.LogLevel)
	logger := logging.ServiceLogger("gphotoctl", "dev")

	if _, err := store.Open(store.Config{
		DatabaseURL:     cfg.Store.DatabaseURL,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	}); err != nil {
		logger.Fatalf("migrate: %v", err)
	}
	logger.Info("schema up to date")
}

func portFromAddr(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i+1:]
		}
	}
	return ""
}
