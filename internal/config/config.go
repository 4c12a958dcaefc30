package config

import "time"

// Config holds client configuration values.
type Config struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	APIURL         string        `mapstructure:"api_url" yaml:"api_url"`
	Token          string        `mapstructure:"token" yaml:"token"`
	Username       string        `mapstructure:"username" yaml:"username"`
	UserID         string        `mapstructure:"user_id" yaml:"user_id"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
	JoinTimeout    time.Duration `mapstructure:"join_timeout" yaml:"join_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	MaxFrameBytes  int64         `mapstructure:"max_frame_bytes" yaml:"max_frame_bytes"`
}

// Default returns configuration pointing at a local relay.
func Default() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		APIURL:         "http://localhost:8080",
		LogLevel:       "info",
		JoinTimeout:    30 * time.Second,
		SweepInterval:  time.Second,
		RequestTimeout: 10 * time.Second,
		DialTimeout:    5 * time.Second,
		MaxFrameBytes:  1 << 20,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.APIURL != "" {
		c.APIURL = other.APIURL
	}
	if other.Token != "" {
		c.Token = other.Token
	}
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.UserID != "" {
		c.UserID = other.UserID
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JoinTimeout != 0 {
		c.JoinTimeout = other.JoinTimeout
	}
	if other.SweepInterval != 0 {
		c.SweepInterval = other.SweepInterval
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.DialTimeout != 0 {
		c.DialTimeout = other.DialTimeout
	}
	if other.MaxFrameBytes != 0 {
		c.MaxFrameBytes = other.MaxFrameBytes
	}
}
