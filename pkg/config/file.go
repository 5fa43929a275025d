// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig mirrors the optional TOML configuration file. Environment
// variables take precedence over every value set here.
type FileConfig struct {
	APIKey             string   `toml:"api_key"`
	BaseURL            string   `toml:"base_url"`
	AuthToken          string   `toml:"auth_token"`
	AuthHeader         string   `toml:"auth_header"`
	Port               string   `toml:"port"`
	RequestTimeout     duration `toml:"request_timeout"`
	MaxBodyBytes       int64    `toml:"max_body_bytes"`
	UpstreamInsecure   *bool    `toml:"upstream_insecure"`
	LogLevel           string   `toml:"log_level"`
	LogFormat          string   `toml:"log_format"`
	ServerReadTimeout  duration `toml:"server_read_timeout"`
	ServerWriteTimeout duration `toml:"server_write_timeout"`
	ServerIdleTimeout  duration `toml:"server_idle_timeout"`
	GracefulShutdown   duration `toml:"graceful_shutdown"`
}

// LoadFile decodes the TOML file at path. An empty path yields an empty
// FileConfig; a path that cannot be read or decoded is an error.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, nil
	}

	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return FileConfig{}, fmt.Errorf("decode config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	return fc, nil
}

// duration accepts Go duration strings ("90s", "2m") in TOML.
type duration struct {
	time.Duration
	set bool
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	d.set = true
	return nil
}
