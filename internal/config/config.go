package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig  `mapstructure:"mqtt"`
	Redis    RedisConfig `mapstructure:"redis"`

	Device  DeviceConfig  `mapstructure:"device"`
	Battery BatteryConfig `mapstructure:"battery"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Port    uint          `mapstructure:"port"`
	HttpLog bool          `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	BaseTopic string `mapstructure:"base_topic"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `mapstructure:"db"`
}

type DeviceConfig struct {
	Name  string
	Model string
	Key   string
}

type BatteryConfig struct {
	CellCount      uint16 `mapstructure:"cell_count"`
	SimulationSeed uint64 `mapstructure:"simulation_seed"`

	AFEModbusTcp AFEModbusTCPConfig `mapstructure:"afe_modbus_tcp"`
}

// AFEModbusTCPConfig points at a cell-monitor AFE exposed over Modbus TCP.
// When Host is empty the agent runs with the simulated sampler.
type AFEModbusTCPConfig struct {
	Host   string
	Port   uint
	UnitId uint `mapstructure:"unit_id"`
}

type SyncConfig struct {
	SampleIntervalSeconds uint32 `mapstructure:"sample_interval_seconds"`
	AuthCheckSeconds      uint32 `mapstructure:"auth_check_seconds"`
}

func (c BatteryConfig) HardwareEnabled() bool {
	return c.AFEModbusTcp.Host != ""
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
