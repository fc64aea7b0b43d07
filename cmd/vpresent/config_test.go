package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	addFlags(fs)

	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}

	return fs
}

func TestDefaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), newFlags(t), "")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.FPS != 30 || cfg.Engine != "memory" || cfg.Sink.Kind != "log" || cfg.Rate != 1 {
		t.Fatalf("%+v", cfg)
	}

	if cfg.WS.Addr != ":8090" || cfg.Sink.Topic != "vpresent.events" {
		t.Fatalf("%+v", cfg)
	}
}

func TestFlagsAndEnv(t *testing.T) {
	t.Setenv("VPRESENT_SINK_ADDR", "127.0.0.1:6379")
	t.Setenv("VPRESENT_FRAMES", "12")

	cfg, err := loadConfig(viper.New(), newFlags(t, "--sink.kind=redis", "--rate=0.5", "--step=2"), "")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Sink.Kind != "redis" || cfg.Sink.Addr != "127.0.0.1:6379" {
		t.Fatalf("sink %+v", cfg.Sink)
	}

	if cfg.Frames != 12 || cfg.Rate != 0.5 || cfg.Step != 2 {
		t.Fatalf("%+v", cfg)
	}
}

func TestConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "vpresent.yaml")
	body := "fps: 60\nengine: ws\nmetrics:\n  addr: 127.0.0.1:9100\n"

	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(viper.New(), newFlags(t), file)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.FPS != 60 || cfg.Engine != "ws" || cfg.Metrics.Addr != "127.0.0.1:9100" {
		t.Fatalf("%+v", cfg)
	}

	if len(cfg.options()) == 0 {
		t.Fatal("no options")
	}
}
