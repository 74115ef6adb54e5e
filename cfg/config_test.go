package cfg

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, configFileName)
	if err := ioutil.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, `
InstrumentAddr: "GPIB22::/dev/ttyUSB0::INSTR"
BaudRate: 19200
PollingInterval: 30
SweepCount: 25
FilterCount: 10
NoiseWindow: 5
Influx: true
InfluxURL: "https://localhost:8086"
InfluxAPIToken: "token"
InfluxOrgName: "sssoc"
InfluxBucketName: "picoamp"
`)
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.InstrumentAddr != "GPIB22::/dev/ttyUSB0::INSTR" {
		t.Errorf("InstrumentAddr = %q", cfg.InstrumentAddr)
	}
	if cfg.BaudRate != 19200 {
		t.Errorf("BaudRate = %d", cfg.BaudRate)
	}
	if cfg.SweepCount != 25 {
		t.Errorf("SweepCount = %d", cfg.SweepCount)
	}
	if cfg.FilterCount != 10 || cfg.NoiseWindow != 5 {
		t.Errorf("filter settings = %d, %d", cfg.FilterCount, cfg.NoiseWindow)
	}
	if !cfg.Influx || cfg.InfluxBucketName != "picoamp" {
		t.Errorf("influx settings = %+v", cfg)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "PollingInterval: 60\n")
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.SweepCount != defaultSweepCount {
		t.Errorf("SweepCount = %d, want default %d", cfg.SweepCount, defaultSweepCount)
	}
	if cfg.PowerLineCycles != defaultPowerLineCycles {
		t.Errorf("PowerLineCycles = %d, want default %d", cfg.PowerLineCycles, defaultPowerLineCycles)
	}
	if cfg.InstrumentAddr != "" {
		t.Errorf("InstrumentAddr = %q, want blank for discovery", cfg.InstrumentAddr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Errorf("loadConfig() error = %v, want not-exist", err)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeTempConfig(t, "SweepCount: [not an int\n")
	if _, err := loadConfig(path); err == nil {
		t.Error("loadConfig() expected an error on malformed YAML")
	}
}
