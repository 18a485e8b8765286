package models

// WidgetPreset is a named set of widget options loaded from presets.yaml.
// Zero fields fall back to the server's widget defaults.
type WidgetPreset struct {
	Name          string   `yaml:"-" json:"name"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	MaxFiles      int      `yaml:"max_files" json:"maxFiles,omitempty"`
	MaxFileSize   string   `yaml:"max_file_size" json:"maxFileSize,omitempty"`
	AcceptedTypes []string `yaml:"accepted_types" json:"acceptedTypes,omitempty"`
	Multiple      *bool    `yaml:"multiple" json:"multiple,omitempty"`
	Labels        Labels   `yaml:"labels" json:"labels"`
	Theme         string   `yaml:"theme" json:"theme,omitempty"`
}

// PresetFile is the top-level structure of presets.yaml.
type PresetFile struct {
	Presets map[string]WidgetPreset `yaml:"presets"`
}
