package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML shape of a config file. Unset keys leave the
// current value alone.
type FileConfig struct {
	BaseURL          *string        `yaml:"base_url"`
	MaxPages         *int           `yaml:"max_pages"`
	PageDelay        *time.Duration `yaml:"page_delay"`
	Timeout          *time.Duration `yaml:"timeout"`
	UserAgent        *string        `yaml:"user_agent"`
	OutputDir        *string        `yaml:"output_dir"`
	OutputFormat     *string        `yaml:"output_format"`
	RespectRobotsTxt *bool          `yaml:"respect_robots_txt"`
	MetricsAddr      *string        `yaml:"metrics_addr"`
}

// LoadFile reads a YAML config file. A missing file returns nil, nil.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &fc, nil
}

// Apply copies every key present in fc onto c.
func (fc *FileConfig) Apply(c *Config) {
	if fc == nil {
		return
	}
	if fc.BaseURL != nil {
		c.BaseURL = *fc.BaseURL
	}
	if fc.MaxPages != nil {
		c.MaxPages = *fc.MaxPages
	}
	if fc.PageDelay != nil {
		c.PageDelay = *fc.PageDelay
	}
	if fc.Timeout != nil {
		c.Timeout = *fc.Timeout
	}
	if fc.UserAgent != nil {
		c.UserAgent = *fc.UserAgent
	}
	if fc.OutputDir != nil {
		c.OutputDir = *fc.OutputDir
	}
	if fc.OutputFormat != nil {
		c.OutputFormat = strings.ToLower(*fc.OutputFormat)
	}
	if fc.RespectRobotsTxt != nil {
		c.RespectRobotsTxt = *fc.RespectRobotsTxt
	}
	if fc.MetricsAddr != nil {
		c.MetricsAddr = *fc.MetricsAddr
	}
}
