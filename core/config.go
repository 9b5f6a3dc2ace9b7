package core

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/lisuiheng/pulse-go/proto"
)

// Config is the file-backed client configuration.
type Config struct {
	Server struct {
		Address     string `mapstructure:"address"`
		AppName     string `mapstructure:"app_name"`
		NoAutoSpawn bool   `mapstructure:"no_autospawn"`
		NoFail      bool   `mapstructure:"no_fail"`
	} `mapstructure:"server"`

	Audio struct {
		SampleRate int    `mapstructure:"sample_rate"`
		Channels   int    `mapstructure:"channels"`
		Format     string `mapstructure:"format"`
	} `mapstructure:"audio"`

	Buffer struct {
		MaxLength    uint32 `mapstructure:"max_length"`
		TargetLength uint32 `mapstructure:"target_length"`
		Prebuf       uint32 `mapstructure:"prebuf"`
		MinRequest   uint32 `mapstructure:"min_request"`
		Fragsize     uint32 `mapstructure:"fragsize"`
	} `mapstructure:"buffer"`

	Logging struct {
		Level   string   `mapstructure:"level"`
		Outputs []string `mapstructure:"outputs"`
	} `mapstructure:"logging"`
}

// LoadConfig reads the YAML configuration. With an empty path the usual
// locations are searched.
func LoadConfig(configPath string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pulse-go")
	}

	v.SetDefault("server.app_name", "pulse-go")
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.channels", 2)
	v.SetDefault("audio.format", proto.SampleS16LE.String())
	v.SetDefault("logging.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// SampleSpec translates the audio section into a spec, validating it.
func (c Config) SampleSpec() (proto.SampleSpec, error) {
	format, err := proto.ParseSampleFormat(c.Audio.Format)
	if err != nil {
		return proto.SampleSpec{}, err
	}
	spec := proto.SampleSpec{
		Format:   format,
		Rate:     uint32(c.Audio.SampleRate),
		Channels: uint8(c.Audio.Channels),
	}
	if !spec.Valid() {
		return proto.SampleSpec{}, fmt.Errorf("%s: %w", spec, ErrInvalidSpec)
	}
	return spec, nil
}

// BufferAttr translates the buffer section, leaving unset metrics to the
// server.
func (c Config) BufferAttr() proto.BufferAttr {
	attr := proto.DefaultBufferAttr()
	if c.Buffer.MaxLength != 0 {
		attr.MaxLength = c.Buffer.MaxLength
	}
	if c.Buffer.TargetLength != 0 {
		attr.TLength = c.Buffer.TargetLength
	}
	if c.Buffer.Prebuf != 0 {
		attr.Prebuf = c.Buffer.Prebuf
	}
	if c.Buffer.MinRequest != 0 {
		attr.MinReq = c.Buffer.MinRequest
	}
	if c.Buffer.Fragsize != 0 {
		attr.Fragsize = c.Buffer.Fragsize
	}
	return attr
}

// ContextFlags translates the server section's connection switches.
func (c Config) ContextFlags() proto.ContextFlags {
	flags := proto.ContextNoFlags
	if c.Server.NoAutoSpawn {
		flags |= proto.ContextNoAutoSpawn
	}
	if c.Server.NoFail {
		flags |= proto.ContextNoFail
	}
	return flags
}
