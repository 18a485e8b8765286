package widget

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/imagedrop/backend/internal/logging"
	"github.com/imagedrop/backend/internal/models"
)

// Default limits applied by New to zero-valued fields.
const (
	DefaultMaxFiles    = 10
	DefaultMaxFileSize = 10 << 20
	DefaultTheme       = "light"
)

// DefaultAcceptedTypes is the accepted set when none is configured.
var DefaultAcceptedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// DefaultLabels are the presentation strings used when none are configured.
var DefaultLabels = models.Labels{
	Drag:   "Drag & drop images here",
	Browse: "or click to browse",
	Upload: "Upload",
	Remove: "Remove",
}

// ProgressFunc receives upload progress for one file as a percentage.
type ProgressFunc func(percent float64)

// UploadFunc transports one file. It must return once the file has settled
// and should honour ctx.
type UploadFunc func(ctx context.Context, file File, progress ProgressFunc) error

// Hooks are the optional lifecycle callbacks of a widget. A nil hook is
// skipped; a nil OnUpload turns Upload into a no-op.
type Hooks struct {
	OnFilesAdded     func(files []File)
	OnFileRemoved    func(file File)
	OnUpload         UploadFunc
	OnUploadProgress func(file File, percent float64)
	OnUploadComplete func(files []File)
	OnError          func(err error)
}

// Config is the construction-time configuration of a Controller.
type Config struct {
	MaxFiles      int
	MaxFileSize   int64
	AcceptedTypes []string
	// Multiple tells the view whether its picker may select several files.
	Multiple bool
	Labels   models.Labels
	Theme    string
	Hooks    Hooks
	// Logger receives diagnostics for errors when Hooks.OnError is nil.
	Logger logging.Logger
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		MaxFiles:      DefaultMaxFiles,
		MaxFileSize:   DefaultMaxFileSize,
		AcceptedTypes: append([]string(nil), DefaultAcceptedTypes...),
		Multiple:      true,
		Labels:        DefaultLabels,
		Theme:         DefaultTheme,
	}
}

// normalized returns a private copy of c with defaults applied.
func (c Config) normalized() Config {
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}

	types := make([]string, 0, len(c.AcceptedTypes))
	for _, t := range c.AcceptedTypes {
		if t = normalizeType(t); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		types = append(types, DefaultAcceptedTypes...)
	}
	c.AcceptedTypes = types

	if c.Labels.Drag == "" {
		c.Labels.Drag = DefaultLabels.Drag
	}
	if c.Labels.Browse == "" {
		c.Labels.Browse = DefaultLabels.Browse
	}
	if c.Labels.Upload == "" {
		c.Labels.Upload = DefaultLabels.Upload
	}
	if c.Labels.Remove == "" {
		c.Labels.Remove = DefaultLabels.Remove
	}
	if strings.TrimSpace(c.Theme) == "" {
		c.Theme = DefaultTheme
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
	return c
}

// Settings returns the presentation-facing part of the configuration.
func (c Config) Settings() models.WidgetSettings {
	return models.WidgetSettings{
		MaxFiles:      c.MaxFiles,
		MaxFileSize:   c.MaxFileSize,
		AcceptedTypes: append([]string(nil), c.AcceptedTypes...),
		Multiple:      c.Multiple,
		Labels:        c.Labels,
		Theme:         c.Theme,
	}
}

// Accepts reports whether mediaType is in the accepted set. Entries of the
// form "image/*" match any subtype.
func (c Config) Accepts(mediaType string) bool {
	mediaType = normalizeType(mediaType)
	if mediaType == "" {
		return false
	}
	for _, t := range c.AcceptedTypes {
		if t == mediaType {
			return true
		}
		if prefix, ok := strings.CutSuffix(t, "/*"); ok && strings.HasPrefix(mediaType, prefix+"/") {
			return true
		}
	}
	return false
}

// validate checks one file against the type and size limits.
func (c Config) validate(f File) error {
	if !c.Accepts(f.Type()) {
		detail := f.Type()
		if detail == "" {
			detail = "unknown type"
		}
		return &ValidationError{File: f, Err: ErrTypeNotAccepted, Detail: detail}
	}
	if f.Size() > c.MaxFileSize {
		return &ValidationError{
			File:   f,
			Err:    ErrFileTooLarge,
			Detail: fmt.Sprintf("%s exceeds %s", humanize.IBytes(uint64(f.Size())), humanize.IBytes(uint64(c.MaxFileSize))),
		}
	}
	return nil
}

func normalizeType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}
