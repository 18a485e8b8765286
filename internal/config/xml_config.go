// Package config provides XML-based configuration management.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FileName is the configuration file looked up next to the executable.
const FileName = "imagedrop.config"

// Sink names.
const (
	SinkLocal = "local"
	SinkS3    = "s3"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ImageDrop"`

	Server     ServerConfig     `xml:"Server"`
	Storage    StorageConfig    `xml:"Storage"`
	Widget     WidgetConfig     `xml:"Widget"`
	Sink       SinkConfig       `xml:"Sink"`
	Processing ProcessingConfig `xml:"Processing"`
	Advanced   AdvancedConfig   `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	JournalPath      string `xml:"JournalPath"`
	PresetsPath      string `xml:"PresetsPath"`
}

// WidgetConfig holds the defaults of new widget instances.
type WidgetConfig struct {
	MaxFiles      int    `xml:"MaxFiles"`
	MaxFileSize   string `xml:"MaxFileSize"`
	AcceptedTypes string `xml:"AcceptedTypes"`
	Multiple      bool   `xml:"Multiple"`
	Theme         string `xml:"Theme"`
	MaxInstances  int    `xml:"MaxInstances"`
}

// SinkConfig selects and configures the upload destination.
type SinkConfig struct {
	Type                 string `xml:"Type"`
	S3Endpoint           string `xml:"S3Endpoint"`
	S3Region             string `xml:"S3Region"`
	S3Bucket             string `xml:"S3Bucket"`
	S3AccessKey          string `xml:"S3AccessKey"`
	S3SecretKey          string `xml:"S3SecretKey"`
	S3Prefix             string `xml:"S3Prefix"`
	S3UsePathStyle       bool   `xml:"S3UsePathStyle"`
	PresignExpiryMinutes int    `xml:"PresignExpiryMinutes"`
	UploadTimeoutSeconds int    `xml:"UploadTimeoutSeconds"`
}

// ProcessingConfig contains instance lifecycle settings
type ProcessingConfig struct {
	SessionTimeoutMinutes  int  `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int  `xml:"CleanupIntervalMinutes"`
	JobRetentionMinutes    int  `xml:"JobRetentionMinutes"`
	EnableCompression      bool `xml:"EnableCompression"`
	CompressionLevel       int  `xml:"CompressionLevel"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	LogFormat               string `xml:"LogFormat"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "200M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			JournalPath:      "./data/journal.duckdb",
			PresetsPath:      "./presets.yaml",
		},
		Widget: WidgetConfig{
			MaxFiles:      10,
			MaxFileSize:   "10MiB",
			AcceptedTypes: "image/jpeg,image/png,image/gif,image/webp",
			Multiple:      true,
			Theme:         "light",
			MaxInstances:  100,
		},
		Sink: SinkConfig{
			Type:                 SinkLocal,
			S3Region:             "us-east-1",
			S3UsePathStyle:       true,
			PresignExpiryMinutes: 15,
			UploadTimeoutSeconds: 300,
		},
		Processing: ProcessingConfig{
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			JobRetentionMinutes:    60,
			EnableCompression:      true,
			CompressionLevel:       5,
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			LogFormat:               "text",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	var config *AppConfig

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		config = DefaultConfig()
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- imagedrop server configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail late at startup.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if _, err := ParseSize(c.Widget.MaxFileSize); err != nil {
		return fmt.Errorf("Widget.MaxFileSize: %w", err)
	}
	switch c.Sink.Type {
	case SinkLocal:
	case SinkS3:
		if c.Sink.S3Bucket == "" {
			return fmt.Errorf("Sink.S3Bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("unknown sink type %q", c.Sink.Type)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.JournalPath = filepath.Join(dataDir, "journal.duckdb")
	}

	overrides := map[string]*string{
		"IMAGEDROP_SINK": &c.Sink.Type,
		"S3_ENDPOINT":    &c.Sink.S3Endpoint,
		"S3_BUCKET":      &c.Sink.S3Bucket,
		"S3_REGION":      &c.Sink.S3Region,
		"S3_ACCESS_KEY":  &c.Sink.S3AccessKey,
		"S3_SECRET_KEY":  &c.Sink.S3SecretKey,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	c.Sink.Type = strings.ToLower(strings.TrimSpace(c.Sink.Type))
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.UploadsDirectory,
		&c.Storage.JournalPath,
		&c.Storage.PresetsPath,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// MaxFileSize returns the parsed widget file size limit.
func (c *AppConfig) MaxFileSize() int64 {
	n, _ := ParseSize(c.Widget.MaxFileSize)
	return n
}

// AcceptedTypes returns the configured accepted media types.
func (c *AppConfig) AcceptedTypes() []string {
	return splitList(c.Widget.AcceptedTypes)
}

// AllowedOrigins returns the CORS origins, "*" when none are configured.
func (c *AppConfig) AllowedOrigins() []string {
	origins := splitList(c.Server.AllowOrigins)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// SessionTimeout is how long an unused widget instance is kept.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval is the period of the background cleanup loop.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// UploadTimeout bounds one upload job; zero means no limit.
func (c *AppConfig) UploadTimeout() time.Duration {
	return time.Duration(c.Sink.UploadTimeoutSeconds) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}
	if c.Storage.JournalPath != "" {
		dirs = append(dirs, filepath.Dir(c.Storage.JournalPath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ParseSize parses human-readable sizes such as "10MB", "10MiB" or "2G".
// An empty string is zero.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
