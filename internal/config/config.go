package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/breathwave-go/internal/ccout"
)

// Config holds runtime configuration for the breathe command. Environment
// variables provide the base, an optional YAML file overrides them, and
// command-line flags override both.
type Config struct {
	// Inputs
	SessionPath string
	DatasetDir  string

	// Control loop
	FPS      int
	Duration time.Duration // 0 runs until interrupted

	// Audio preview
	Preview      bool
	SampleRate   int
	PreviewTrack string  // audio track id; empty picks the first audio track
	BreathDepth  float64 // sample-rate breathing applied to the preview gain, 0..1

	// Offline export
	WAVPath      string
	WAVTrack     string
	WAVParameter string

	// MIDI CC export
	CCPath     string
	CCMappings []ccout.Mapping
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		SessionPath: envStr("BREATHWAVE_SESSION", ""),
		DatasetDir:  envStr("BREATHWAVE_DATASETS", ""),

		FPS:      envInt("BREATHWAVE_FPS", 60),
		Duration: time.Duration(envFloat("BREATHWAVE_DURATION", 0) * float64(time.Second)),

		Preview:      envBool("BREATHWAVE_PREVIEW", false),
		SampleRate:   envInt("BREATHWAVE_SAMPLE_RATE", 48000),
		PreviewTrack: envStr("BREATHWAVE_PREVIEW_TRACK", ""),
		BreathDepth:  envFloat("BREATHWAVE_BREATH_DEPTH", 0),

		WAVPath:      envStr("BREATHWAVE_WAV", ""),
		WAVTrack:     envStr("BREATHWAVE_WAV_TRACK", ""),
		WAVParameter: envStr("BREATHWAVE_WAV_PARAM", "gain"),

		CCPath: envStr("BREATHWAVE_CC_OUT", ""),
	}
}

// file is the YAML layout; absent keys leave the current value alone.
type file struct {
	Session  *string  `yaml:"session"`
	Datasets *string  `yaml:"datasets"`
	FPS      *int     `yaml:"fps"`
	Duration *float64 `yaml:"duration"`
	Preview  *struct {
		Enabled     *bool    `yaml:"enabled"`
		SampleRate  *int     `yaml:"sampleRate"`
		Track       *string  `yaml:"track"`
		BreathDepth *float64 `yaml:"breathDepth"`
	} `yaml:"preview"`
	WAV *struct {
		Path      *string `yaml:"path"`
		Track     *string `yaml:"track"`
		Parameter *string `yaml:"parameter"`
	} `yaml:"wav"`
	CC *struct {
		Path     *string         `yaml:"path"`
		Mappings []ccout.Mapping `yaml:"mappings"`
	} `yaml:"cc"`
}

// LoadFile overlays the YAML file at path onto c.
func (c Config) LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return c, fmt.Errorf("config %s: %w", path, err)
	}
	set(&c.SessionPath, f.Session)
	set(&c.DatasetDir, f.Datasets)
	set(&c.FPS, f.FPS)
	if f.Duration != nil {
		c.Duration = time.Duration(*f.Duration * float64(time.Second))
	}
	if p := f.Preview; p != nil {
		set(&c.Preview, p.Enabled)
		set(&c.SampleRate, p.SampleRate)
		set(&c.PreviewTrack, p.Track)
		set(&c.BreathDepth, p.BreathDepth)
	}
	if w := f.WAV; w != nil {
		set(&c.WAVPath, w.Path)
		set(&c.WAVTrack, w.Track)
		set(&c.WAVParameter, w.Parameter)
	}
	if cc := f.CC; cc != nil {
		set(&c.CCPath, cc.Path)
		if cc.Mappings != nil {
			c.CCMappings = cc.Mappings
		}
	}
	return c, nil
}

// Validate rejects values the command cannot run with.
func (c Config) Validate() error {
	switch {
	case c.FPS <= 0 || c.FPS > 1000:
		return fmt.Errorf("fps %d out of range", c.FPS)
	case c.SampleRate < 8000 || c.SampleRate > 192000:
		return fmt.Errorf("sample rate %d out of range", c.SampleRate)
	case c.BreathDepth < 0 || c.BreathDepth > 1:
		return fmt.Errorf("breath depth %v out of range", c.BreathDepth)
	case c.Duration < 0:
		return fmt.Errorf("duration %v is negative", c.Duration)
	case c.WAVPath != "" && c.Duration == 0:
		return errors.New("wav export needs a duration")
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
