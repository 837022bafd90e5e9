package util

import (
	"pack2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "batteries",
		},
		Redis: config.RedisConfig{
			Addr: "localhost:6379",
		},
		Device: config.DeviceConfig{
			Name:  "bench pack",
			Model: "pack2mqtt-sim",
			Key:   "pack_01",
		},
		Battery: config.BatteryConfig{
			CellCount:      4,
			SimulationSeed: 42,
		},
		Sync: config.SyncConfig{
			SampleIntervalSeconds: 5,
			AuthCheckSeconds:      60,
		},
		Port: 8080,
	}
}
