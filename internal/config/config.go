// Package config loads the demo command's configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/teslashibe/go-facecapture/pkg/face"
	"github.com/teslashibe/go-facecapture/pkg/tracking"
)

// Prefix is prepended to every variable name, e.g. FACECAPTURE_PORT
const Prefix = "facecapture"

// Detector backends
const (
	DetectorYuNet       = "yunet"
	DetectorRekognition = "rekognition"
)

// Config is the demo configuration
type Config struct {
	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Dashboard
	Port string `envconfig:"PORT" default:"8080"`

	// Camera
	Camera int  `envconfig:"CAMERA" default:"0"`
	Mirror bool `envconfig:"MIRROR" default:"true"`

	// Detection
	Detector      string  `envconfig:"DETECTOR" default:"yunet"`
	YuNetModel    string  `envconfig:"YUNET_MODEL" default:"models/face_detection_yunet.onnx"`
	AWSRegion     string  `envconfig:"AWS_REGION" default:"us-east-1"`
	MinConfidence float64 `envconfig:"MIN_CONFIDENCE" default:"90"`

	// Session
	CaptureCount int            `envconfig:"CAPTURE_COUNT" default:"1"`
	Bearings     []face.Bearing `envconfig:"BEARINGS" default:"straight,left,right"`
	MaxDuration  time.Duration  `envconfig:"MAX_DURATION" default:"30s"`
	RejectSnaps  bool           `envconfig:"REJECT_SNAPS" default:"false"` // Fail a head that jumps between bearings

	// Plugins
	// DepthLiveness needs frames with a depth map. The webcam source has none,
	// so Validate rejects it.
	DepthLiveness bool   `envconfig:"DEPTH_LIVENESS" default:"false"`
	SpoofModel    string `envconfig:"SPOOF_MODEL"` // Empty disables passive liveness
	Record        bool   `envconfig:"RECORD" default:"false"`
	RecordingPath string `envconfig:"RECORDING_PATH"`
}

// Load reads the configuration from FACECAPTURE_* variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig can't
func (c *Config) Validate() error {
	switch c.Detector {
	case DetectorYuNet, DetectorRekognition:
	default:
		return fmt.Errorf("load config: unknown detector %q", c.Detector)
	}
	if c.Port == "" {
		return fmt.Errorf("load config: port is required")
	}
	if c.DepthLiveness {
		return fmt.Errorf("load config: depth liveness needs a depth camera, camera %d is a plain webcam", c.Camera)
	}
	_, err := c.SessionSettings()
	return err
}

// SessionSettings converts the configuration to tracking settings. More than
// one capture starts from the active liveness preset.
func (c *Config) SessionSettings() (tracking.Settings, error) {
	s := tracking.DefaultSettings()
	if c.CaptureCount > 1 {
		s = tracking.ActiveLivenessSettings()
	}
	s.FaceCaptureCount = c.CaptureCount
	if len(c.Bearings) > 0 {
		s.AvailableBearings = append([]face.Bearing(nil), c.Bearings...)
	}
	if c.MaxDuration > 0 {
		s.MaxDuration = c.MaxDuration
	}
	s.RejectMovedTooFast = c.RejectSnaps
	if err := s.Validate(); err != nil {
		return tracking.Settings{}, fmt.Errorf("load config: %w", err)
	}
	return s, nil
}
