package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, SinkLocal, cfg.Sink.Type)
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
	assert.Equal(t, filepath.Join(dir, "presets.yaml"), cfg.Storage.PresetsPath)
	assert.Equal(t, int64(10<<20), cfg.MaxFileSize())
	assert.Equal(t, []string{"image/jpeg", "image/png", "image/gif", "image/webp"}, cfg.AcceptedTypes())
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	content := `<?xml version="1.0" encoding="UTF-8"?>
<ImageDrop>
  <Server>
    <Port>9000</Port>
    <AllowOrigins>http://a.example, http://b.example</AllowOrigins>
  </Server>
  <Widget>
    <MaxFiles>3</MaxFiles>
    <MaxFileSize>2MB</MaxFileSize>
    <AcceptedTypes>image/png</AcceptedTypes>
  </Widget>
</ImageDrop>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins())
	assert.Equal(t, 3, cfg.Widget.MaxFiles)
	assert.Equal(t, int64(2000000), cfg.MaxFileSize())
	assert.Equal(t, []string{"image/png"}, cfg.AcceptedTypes())
	// unspecified sections keep their defaults
	assert.Equal(t, "info", cfg.Advanced.LogLevel)
	assert.Equal(t, SinkLocal, cfg.Sink.Type)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	data := t.TempDir()
	t.Setenv("PORT", "7000")
	t.Setenv("DATA_DIR", data)
	t.Setenv("IMAGEDROP_SINK", "S3")
	t.Setenv("S3_BUCKET", "images")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")

	cfg, err := LoadConfig(filepath.Join(dir, FileName))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, data, cfg.GetDataDir())
	assert.Equal(t, filepath.Join(data, "uploads"), cfg.GetUploadDir())
	assert.Equal(t, SinkS3, cfg.Sink.Type)
	assert.Equal(t, "images", cfg.Sink.S3Bucket)
	assert.Equal(t, "http://minio:9000", cfg.Sink.S3Endpoint)
	assert.Equal(t, "eu-west-1", cfg.Sink.S3Region)
	assert.Equal(t, "ak", cfg.Sink.S3AccessKey)
	assert.Equal(t, "sk", cfg.Sink.S3SecretKey)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed", "<ImageDrop><Server>"},
		{"bad size", "<ImageDrop><Widget><MaxFileSize>huge</MaxFileSize></Widget></ImageDrop>"},
		{"unknown sink", "<ImageDrop><Sink><Type>ftp</Type></Sink></ImageDrop>"},
		{"s3 without bucket", "<ImageDrop><Sink><Type>s3</Type></Sink></ImageDrop>"},
		{"bad port", "<ImageDrop><Server><Port>70000</Port></Server></ImageDrop>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"", 0, true},
		{"10MiB", 10 << 20, true},
		{"10MB", 10000000, true},
		{"2G", 2000000000, true},
		{" 512 KiB ", 512 << 10, true},
		{"1024", 1024, true},
		{"lots", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{cfg.GetDataDir(), cfg.GetUploadDir()} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
