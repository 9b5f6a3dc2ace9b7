package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lisuiheng/pulse-go/proto"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  address: "unix:/run/pulse/native"
  app_name: "player"
  no_autospawn: true
audio:
  sample_rate: 48000
  channels: 1
  format: "float32le"
buffer:
  target_length: 19200
  min_request: 4800
logging:
  level: "debug"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "unix:/run/pulse/native", cfg.Server.Address)
	assert.Equal(t, "player", cfg.Server.AppName)
	assert.True(t, cfg.Server.NoAutoSpawn)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, "debug", cfg.Logging.Level)

	spec, err := cfg.SampleSpec()
	require.NoError(t, err)
	assert.Equal(t, proto.SampleSpec{Format: proto.SampleFloat32LE, Rate: 48000, Channels: 1}, spec)

	attr := cfg.BufferAttr()
	assert.EqualValues(t, 19200, attr.TLength)
	assert.EqualValues(t, 4800, attr.MinReq)
	assert.Equal(t, proto.InvalidIndex, attr.MaxLength)
	assert.Equal(t, proto.InvalidIndex, attr.Prebuf)
	assert.Equal(t, proto.InvalidIndex, attr.Fragsize)

	assert.Equal(t, proto.ContextNoAutoSpawn, cfg.ContextFlags())
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  address: \"\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "pulse-go", cfg.Server.AppName)
	spec, err := cfg.SampleSpec()
	require.NoError(t, err)
	assert.Equal(t, proto.SampleSpec{Format: proto.SampleS16LE, Rate: 44100, Channels: 2}, spec)
	assert.Equal(t, proto.ContextNoFlags, cfg.ContextFlags())
	assert.Equal(t, proto.DefaultBufferAttr(), cfg.BufferAttr())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestConfigRejectsBadFormat(t *testing.T) {
	path := writeConfig(t, "audio:\n  format: \"dsd512\"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = cfg.SampleSpec()
	require.Error(t, err)
}

func TestConfigRejectsInvalidSpec(t *testing.T) {
	path := writeConfig(t, "audio:\n  channels: 0\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = cfg.SampleSpec()
	require.ErrorIs(t, err, ErrInvalidSpec)
}
