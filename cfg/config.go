package cfg

import (
	"io/ioutil"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	// InstrumentAddr is a VISA-style address (ASRL::/dev/ttyUSB0::INSTR or
	// GPIB22::/dev/ttyUSB0::INSTR). Blank means discover by identifier.
	InstrumentAddr string `yaml:"InstrumentAddr"`
	// Identifier overrides the *IDN? pattern used during discovery.
	Identifier string `yaml:"Identifier"`
	BaudRate   int    `yaml:"BaudRate"`
	// PollingInterval is the number of seconds between acquisitions.
	PollingInterval int64 `yaml:"PollingInterval"`
	// SweepCount is the number of readings averaged per acquisition.
	SweepCount int `yaml:"SweepCount"`
	// FilterCount enables the moving average filter when positive.
	FilterCount int `yaml:"FilterCount"`
	// NoiseWindow enables the advanced filter when positive. Percent of
	// full scale, 0 to 105.
	NoiseWindow      int    `yaml:"NoiseWindow"`
	DisableAutozero  bool   `yaml:"DisableAutozero"`
	PowerLineCycles  int    `yaml:"PowerLineCycles"`
	Influx           bool   `yaml:"Influx"`
	InfluxURL        string `yaml:"InfluxURL"`
	InfluxAPIToken   string `yaml:"InfluxAPIToken"`
	InfluxOrgName    string `yaml:"InfluxOrgName"`
	InfluxBucketName string `yaml:"InfluxBucketName"`
	InfluxSkipTLS    bool   `yaml:"InfluxSkipTLS"`
}

var configFileName = "picoamp.yaml"

const (
	defaultSweepCount      = 10
	defaultPowerLineCycles = 10
)

// InitConfig initializes the config from the config YAML file in the lani
// appdata dir.
func InitConfig() (*Config, error) {
	return loadConfig(filepath.Join(btcutil.AppDataDir("fmtd", false), configFileName))
}

func loadConfig(path string) (*Config, error) {
	cfgBytes, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	err = yaml.Unmarshal(cfgBytes, &cfg)
	if err != nil {
		return nil, err
	}
	setDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.SweepCount <= 0 {
		cfg.SweepCount = defaultSweepCount
	}
	if cfg.PowerLineCycles <= 0 {
		cfg.PowerLineCycles = defaultPowerLineCycles
	}
}
