package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "pack2mqtt/internal/adapter/actor"
	"pack2mqtt/internal/adapter/netmon"
	"pack2mqtt/internal/adapter/sampler"
	"pack2mqtt/internal/config"
	"pack2mqtt/internal/core/actor"
	"pack2mqtt/internal/core/domain"
	"pack2mqtt/internal/core/port"
	"pack2mqtt/internal/core/service"
	"pack2mqtt/internal/mqtt"
	"pack2mqtt/internal/params"
	"pack2mqtt/internal/server"
	"pack2mqtt/internal/util/actorutil"
	"pack2mqtt/pkg/cellbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// processRestarter terminates the process and relies on the service manager
// to bring the agent back up. Commands that trigger it are acknowledged
// before it runs.
type processRestarter struct {
	logger *zap.Logger
}

func (p processRestarter) Restart() {
	p.logger.Warn("restart requested, exiting")
	_ = p.logger.Sync()
	os.Exit(1)
}

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// param store: redis when reachable, volatile otherwise
	handle, closeStore, err := openParamStore(cfg, logger)
	if err != nil {
		logger.Error("could not open param store", zap.Error(err))
		return
	}
	defer closeStore()

	boots := handle.IncrementCounter(params.CounterBoot)
	logger.Info("agent booting", zap.Uint32("bootCount", boots),
		zap.String("deviceKey", cfg.Device.Key))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	samplerProv, err := samplerProvider(cfg, logger)
	if err != nil {
		panic(err)
	}

	session := mqtt.NewMQTTSession(cfg, mqtt.OptsFromConfig(cfg), logger)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterActor(*cfg, handle, netmon.AlwaysConnected{}, processRestarter{logger: logger},
			func() *adactor.RemoteActor {
				return adactor.NewRemoteActor(session, logger)
			}, samplerProv, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => PACK2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("PACK2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("pack2mqtt")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check bounds
	if cfg.Device.Key == "" {
		return nil, errors.New("config param device.key is required")
	}
	if cfg.Battery.CellCount < 1 {
		return nil, errors.New("config param battery.cell_count should be >= 1")
	}
	if cfg.Sync.SampleIntervalSeconds < 1 {
		return nil, errors.New("config param sync.sample_interval_seconds should be >= 1")
	}
	if cfg.Sync.AuthCheckSeconds < 10 {
		return nil, errors.New("config param sync.auth_check_seconds should be >= 10")
	}

	return &cfg, nil
}

// openParamStore prefers redis so counters and params survive restarts. When
// redis is unreachable the agent still runs on a volatile store.
func openParamStore(cfg *config.Config, logger *zap.Logger) (*params.Handle, func(), error) {
	if cfg.Redis.Addr != "" {
		store, err := params.NewRedisStore(cfg.Redis)
		if err == nil {
			handle, err := params.Open(store, defaultDeviceParams(cfg), logger)
			if err != nil {
				store.Close()
				return nil, nil, err
			}
			return handle, func() { store.Close() }, nil
		}
		logger.Warn("redis unreachable, falling back to volatile param store", zap.Error(err))
	}
	handle, err := params.Open(params.NewMemoryStore(), defaultDeviceParams(cfg), logger)
	if err != nil {
		return nil, nil, err
	}
	return handle, func() {}, nil
}

func defaultDeviceParams(cfg *config.Config) domain.DeviceParams {
	return domain.DeviceParams{
		DeviceName:            cfg.Device.Name,
		DeviceModel:           cfg.Device.Model,
		DeviceKey:             cfg.Device.Key,
		CellCount:             cfg.Battery.CellCount,
		SampleIntervalSeconds: cfg.Sync.SampleIntervalSeconds,
		AlertHighTemp:         viper.GetFloat64("alerts.high_temp"),
		AlertLowTemp:          viper.GetFloat64("alerts.low_temp"),
		AlertHighVoltage:      viper.GetFloat64("alerts.high_voltage"),
		AlertLowVoltage:       viper.GetFloat64("alerts.low_voltage"),
		MaxCurrent:            viper.GetFloat64("alerts.max_current"),
		ShutdownVoltage:       viper.GetFloat64("alerts.shutdown_voltage"),
		BalancingEnabled:      viper.GetBool("balancing.enabled"),
		BalancingThreshold:    viper.GetFloat64("balancing.threshold"),
		DeepSleepEnabled:      viper.GetBool("deep_sleep_enabled"),
	}
}

func samplerProvider(cfg *config.Config, logger *zap.Logger) (actor.SamplerProvider, error) {
	if !cfg.Battery.HardwareEnabled() {
		seed := cfg.Battery.SimulationSeed
		return func() port.CellSampler {
			return service.NewSimulatedSampler(seed)
		}, nil
	}

	reader, err := cellbus.CreateCellBankModbusReader(cfg.Battery.AFEModbusTcp.Host,
		cfg.Battery.AFEModbusTcp.Port, uint8(cfg.Battery.AFEModbusTcp.UnitId), 1*time.Second,
		logger, nil)
	if err != nil {
		return nil, err
	}

	return func() port.CellSampler {
		return sampler.NewModbusCellSampler(reader,
			service.MinCellVoltage, service.MaxCellVoltage,
			service.MinCellTemperature, service.MaxCellTemperature)
	}, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.base_topic", "pack2mqtt")
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("device.name", "battery pack")
	viper.SetDefault("device.model", "pack2mqtt")
	viper.SetDefault("battery.cell_count", 4)
	viper.SetDefault("sync.sample_interval_seconds", 5)
	viper.SetDefault("sync.auth_check_seconds", 60)
	viper.SetDefault("alerts.high_temp", 40.0)
	viper.SetDefault("alerts.low_temp", 12.0)
	viper.SetDefault("alerts.high_voltage", 4.15)
	viper.SetDefault("alerts.low_voltage", 3.1)
	viper.SetDefault("alerts.max_current", 8.0)
	viper.SetDefault("alerts.shutdown_voltage", 3.2)
	viper.SetDefault("balancing.enabled", true)
	viper.SetDefault("balancing.threshold", 0.1)
	viper.SetDefault("deep_sleep_enabled", false)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.Redis.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
