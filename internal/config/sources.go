package config

// ConfigSource indicates where a configuration value came from.
type ConfigSource string

const (
	SourceDefault ConfigSource = "default"
	SourceSystem  ConfigSource = "system"
	SourceUser    ConfigSource = "user"
	SourceProject ConfigSource = "project"
	SourceEnv     ConfigSource = "env"
)

// TrackedConfig wraps a Config with per-top-level-key source tracking,
// recording where each setting actually came from.
type TrackedConfig struct {
	Config  *Config
	Sources map[string]ConfigSource
}

// NewTrackedConfig creates a TrackedConfig seeded with defaults.
func NewTrackedConfig() *TrackedConfig {
	return &TrackedConfig{
		Config:  Default(),
		Sources: make(map[string]ConfigSource),
	}
}

// SetSource records the source for a top-level config key.
func (tc *TrackedConfig) SetSource(key string, source ConfigSource) {
	tc.Sources[key] = source
}

// GetSource returns the recorded source for key, or SourceDefault.
func (tc *TrackedConfig) GetSource(key string) ConfigSource {
	if s, ok := tc.Sources[key]; ok {
		return s
	}
	return SourceDefault
}
