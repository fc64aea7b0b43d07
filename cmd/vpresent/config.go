package main

import (
	"strings"

	"vpresent"
	"vpresent/presenter"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "VPRESENT"

// Config is everything the run command reads from flags, file and env.
type Config struct {
	FPS    uint32  `mapstructure:"fps"`
	Frames int     `mapstructure:"frames"`
	Width  int     `mapstructure:"width"`
	Height int     `mapstructure:"height"`
	Pool   int     `mapstructure:"pool"`
	Rate   float32 `mapstructure:"rate"`
	Step   int     `mapstructure:"step"`
	Engine string  `mapstructure:"engine"`

	WS struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"ws"`

	Metrics struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"metrics"`

	Pprof struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"pprof"`

	Sink struct {
		Kind  string `mapstructure:"kind"`
		Addr  string `mapstructure:"addr"`
		Topic string `mapstructure:"topic"`
	} `mapstructure:"sink"`

	Log struct {
		Level    string `mapstructure:"level"`
		Encoding string `mapstructure:"encoding"`
	} `mapstructure:"log"`
}

func addFlags(fs *pflag.FlagSet) {
	fs.Uint32("fps", vpresent.DefaultFPS, "source frame rate")
	fs.Int("frames", vpresent.DefaultFrames, "frames to play, 0 plays until interrupted")
	fs.Int("width", vpresent.DefaultWidth, "frame width")
	fs.Int("height", vpresent.DefaultHeight, "frame height")
	fs.Int("pool", presenter.DefaultPoolSize, "sample pool size")
	fs.Float32("rate", vpresent.DefaultRate, "playback rate")
	fs.Int("step", 0, "frames to step before playing")
	fs.String("engine", vpresent.EngineMemory, "present engine: memory|ws")
	fs.String("ws.addr", ":8090", "preview websocket listen address")
	fs.String("metrics.addr", "", "prometheus listen address, empty disables")
	fs.String("pprof.addr", "", "pprof listen address, empty disables")
	fs.String("sink.kind", vpresent.SinkLog, "event sink: log|redis|kafka|rabbit")
	fs.String("sink.addr", "", "broker address for the event sink")
	fs.String("sink.topic", vpresent.DefaultTopic, "topic events are published on")
	fs.String("log.level", "info", "log level")
	fs.String("log.encoding", "json", "log encoding: json|console")
}

// loadConfig merges flags, the optional config file and VPRESENT_* env.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet, file string) (*Config, error) {
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)

		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	return cfg, nil
}

func (c *Config) options() []vpresent.Option {
	return []vpresent.Option{
		vpresent.OptionWithFPS(c.FPS),
		vpresent.OptionWithFrames(c.Frames),
		vpresent.OptionWithSize(c.Width, c.Height),
		vpresent.OptionWithPoolSize(c.Pool),
		vpresent.OptionWithRate(c.Rate),
		vpresent.OptionWithStep(c.Step),
		vpresent.OptionWithEngine(c.Engine),
		vpresent.OptionWithWSAddr(c.WS.Addr),
		vpresent.OptionWithMetricsAddr(c.Metrics.Addr),
		vpresent.OptionWithPprofAddr(c.Pprof.Addr),
		vpresent.OptionWithSink(c.Sink.Kind, c.Sink.Addr, c.Sink.Topic),
	}
}
