// Package preset loads named widget option sets from YAML.
//
// Example presets.yaml:
//
//	presets:
//	  avatar:
//	    description: Single profile picture
//	    max_files: 1
//	    max_file_size: 2MB
//	    multiple: false
//	    accepted_types: [image/jpeg, image/png]
//	    labels:
//	      drag: Drop your avatar here
package preset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/imagedrop/backend/internal/models"
	"github.com/imagedrop/backend/internal/widget"
	"gopkg.in/yaml.v3"
)

// DefaultName is the preset that is always available. A file may override it.
const DefaultName = "default"

// ErrUnknownPreset is returned by Apply for names not in the registry.
var ErrUnknownPreset = errors.New("unknown preset")

// Registry holds the loaded presets.
type Registry struct {
	presets map[string]models.WidgetPreset
}

// NewRegistry returns a registry containing only the default preset plus
// the given presets.
func NewRegistry(presets map[string]models.WidgetPreset) *Registry {
	r := &Registry{presets: map[string]models.WidgetPreset{
		DefaultName: {Name: DefaultName, Description: "Server widget defaults"},
	}}
	for name, p := range presets {
		p.Name = name
		r.presets[name] = p
	}
	return r
}

// Load parses presets from a YAML file. A missing file yields a registry with
// only the default preset.
func Load(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(nil), nil
		}
		return nil, err
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader parses presets from an io.Reader.
func LoadFromReader(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var pf models.PresetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing presets: %w", err)
	}

	for name, p := range pf.Presets {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return NewRegistry(pf.Presets), nil
}

// Get returns a preset by name.
func (r *Registry) Get(name string) (models.WidgetPreset, bool) {
	p, ok := r.presets[name]
	return p, ok
}

// List returns all presets sorted by name.
func (r *Registry) List() []models.WidgetPreset {
	list := make([]models.WidgetPreset, 0, len(r.presets))
	for _, p := range r.presets {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Apply overlays the named preset onto base. An empty name selects the
// default preset.
func (r *Registry) Apply(name string, base widget.Config) (widget.Config, error) {
	if name == "" {
		name = DefaultName
	}
	p, ok := r.presets[name]
	if !ok {
		return base, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	return Overlay(p, base)
}

// Overlay copies every non-zero option of p onto base.
func Overlay(p models.WidgetPreset, base widget.Config) (widget.Config, error) {
	if p.MaxFiles > 0 {
		base.MaxFiles = p.MaxFiles
	}
	if p.MaxFileSize != "" {
		n, err := humanize.ParseBytes(p.MaxFileSize)
		if err != nil {
			return base, fmt.Errorf("max_file_size: %w", err)
		}
		base.MaxFileSize = int64(n)
	}
	if len(p.AcceptedTypes) > 0 {
		base.AcceptedTypes = append([]string(nil), p.AcceptedTypes...)
	}
	if p.Multiple != nil {
		base.Multiple = *p.Multiple
	}
	if p.Labels.Drag != "" {
		base.Labels.Drag = p.Labels.Drag
	}
	if p.Labels.Browse != "" {
		base.Labels.Browse = p.Labels.Browse
	}
	if p.Labels.Upload != "" {
		base.Labels.Upload = p.Labels.Upload
	}
	if p.Labels.Remove != "" {
		base.Labels.Remove = p.Labels.Remove
	}
	if p.Theme != "" {
		base.Theme = p.Theme
	}
	return base, nil
}

func validate(p models.WidgetPreset) error {
	if p.MaxFiles < 0 {
		return fmt.Errorf("max_files must not be negative")
	}
	if p.MaxFileSize != "" {
		if _, err := humanize.ParseBytes(p.MaxFileSize); err != nil {
			return fmt.Errorf("max_file_size: %w", err)
		}
	}
	return nil
}
