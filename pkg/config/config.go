// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envConfigPath             = "NIM_PROXY_CONFIG"
	envAPIKey                 = "NIM_API_KEY"
	envBaseURL                = "NIM_BASE_URL"
	envAuthToken              = "CUSTOM_AUTH_TOKEN"
	envAuthHeader             = "CUSTOM_AUTH_HEADER"
	envPort                   = "PORT"
	envRequestTimeout         = "NIM_REQUEST_TIMEOUT"
	envMaxBodyBytes           = "NIM_MAX_BODY_BYTES"
	envInsecureSkipVerify     = "NIM_UPSTREAM_INSECURE"
	envLogLevel               = "LOG_LEVEL"
	envLogFormat              = "LOG_FORMAT"
	envServerReadTimeout      = "SERVER_READ_TIMEOUT"
	envServerWriteTimeout     = "SERVER_WRITE_TIMEOUT"
	envServerIdleTimeout      = "SERVER_IDLE_TIMEOUT"
	envGracefulShutdown       = "GRACEFUL_SHUTDOWN"
	DefaultBaseURL            = "https://integrate.api.nvidia.com/v1"
	DefaultAuthHeader         = "x-custom-auth"
	defaultPort               = "3000"
	defaultRequestTimeout     = 120 * time.Second
	defaultMaxBodyBytes       = 10 << 20
	defaultLogLevel           = "info"
	defaultLogFormat          = "json"
	defaultServerReadTimeout  = 30 * time.Second
	defaultServerWriteTimeout = 0
	defaultServerIdleTimeout  = 120 * time.Second
	defaultGracefulShutdown   = 10 * time.Second
)

// ErrMissingAPIKey is returned when no upstream API key is configured.
var ErrMissingAPIKey = errors.New("NIM_API_KEY environment variable is required")

// Config captures runtime settings for the proxy.
type Config struct {
	ListenAddr              string
	Upstream                *url.URL
	APIKey                  string
	AuthToken               string
	AuthHeader              string
	RequestTimeout          time.Duration
	MaxBodyBytes            int64
	InsecureSkipVerify      bool
	LogLevel                string
	LogFormat               string
	ServerReadTimeout       time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	GracefulShutdownTimeout time.Duration
}

// AuthEnabled reports whether inbound requests must present the shared secret.
func (c Config) AuthEnabled() bool {
	return c.AuthToken != ""
}

// ConfigPath returns the TOML file named by NIM_PROXY_CONFIG, if any.
func ConfigPath() string {
	return strings.TrimSpace(os.Getenv(envConfigPath))
}

// Load reads the optional TOML file at path, overlays environment variables
// and validates required values. An empty path skips the file.
func Load(path string) (Config, error) {
	file, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}

	apiKey := getString(envAPIKey, file.APIKey, "")
	if apiKey == "" {
		return Config{}, ErrMissingAPIKey
	}

	baseRaw := getString(envBaseURL, file.BaseURL, DefaultBaseURL)
	upstream, err := url.Parse(strings.TrimSuffix(baseRaw, "/"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid NIM_BASE_URL: %w", err)
	}
	if !upstream.IsAbs() || upstream.Host == "" {
		return Config{}, errors.New("NIM_BASE_URL must be absolute (scheme://host)")
	}

	port := getString(envPort, file.Port, defaultPort)
	listenAddr, err := ListenAddr(port)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:              listenAddr,
		Upstream:                upstream,
		APIKey:                  apiKey,
		AuthToken:               getString(envAuthToken, file.AuthToken, ""),
		AuthHeader:              strings.ToLower(getString(envAuthHeader, file.AuthHeader, DefaultAuthHeader)),
		RequestTimeout:          getDuration(envRequestTimeout, file.RequestTimeout, defaultRequestTimeout),
		MaxBodyBytes:            getInt64(envMaxBodyBytes, file.MaxBodyBytes, defaultMaxBodyBytes),
		InsecureSkipVerify:      getBool(envInsecureSkipVerify, file.UpstreamInsecure, false),
		LogLevel:                strings.ToLower(getString(envLogLevel, file.LogLevel, defaultLogLevel)),
		LogFormat:               strings.ToLower(getString(envLogFormat, file.LogFormat, defaultLogFormat)),
		ServerReadTimeout:       getDuration(envServerReadTimeout, file.ServerReadTimeout, defaultServerReadTimeout),
		ServerWriteTimeout:      getDuration(envServerWriteTimeout, file.ServerWriteTimeout, defaultServerWriteTimeout),
		ServerIdleTimeout:       getDuration(envServerIdleTimeout, file.ServerIdleTimeout, defaultServerIdleTimeout),
		GracefulShutdownTimeout: getDuration(envGracefulShutdown, file.GracefulShutdown, defaultGracefulShutdown),
	}

	return cfg, nil
}

// ListenAddr converts a bare port (as PORT is usually given) into a listen
// address. Values already in host:port form are returned unchanged.
func ListenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if strings.Contains(port, ":") {
		return port, nil
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return "", fmt.Errorf("invalid PORT %q", port)
	}
	return ":" + port, nil
}

func getString(key, fileValue, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	if val := strings.TrimSpace(fileValue); val != "" {
		return val
	}
	return fallback
}

func getBool(key string, fileValue *bool, fallback bool) bool {
	if fileValue != nil {
		fallback = *fileValue
	}
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt64(key string, fileValue, fallback int64) int64 {
	if fileValue > 0 {
		fallback = fileValue
	}
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getDuration(key string, fileValue duration, fallback time.Duration) time.Duration {
	if fileValue.set {
		fallback = fileValue.Duration
	}
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
