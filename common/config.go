package common

import "github.com/spf13/viper"

// ===============================================================================
// HTTP Related Config

// HTTPServerConfig defines the HTTP server parameters
type HTTPServerConfig struct {
	// ListenOn is the interface the HTTP server will listen on
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,ip"`
	// Port is the port the HTTP server will listen on
	Port uint16 `mapstructure:"listen_port" json:"listen_port" validate:"required,gt=0,lt=65536"`
	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body in seconds. A zero or negative
	// value means there will be no timeout.
	ReadTimeout int `mapstructure:"read_timeout_sec" json:"read_timeout_sec" validate:"gte=0"`
	// WriteTimeout is the maximum duration before timing out
	// writes of the response in seconds. A zero or negative value
	// means there will be no timeout.
	//
	// Long lived scene streams live under this limit as well, so the
	// default is intentionally generous.
	WriteTimeout int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=0"`
	// IdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled in seconds. If
	// IdleTimeout is zero, the value of ReadTimeout is used. If
	// both are zero, there is no timeout.
	IdleTimeout int `mapstructure:"idle_timeout_sec" json:"idle_timeout_sec" validate:"gte=0"`
}

// HTTPRequestLogging defines HTTP request logging parameters
type HTTPRequestLogging struct {
	// RequestIDHeader is the HTTP header containing the API request ID
	RequestIDHeader string `mapstructure:"request_id_header" json:"request_id_header"`
	// DoNotLogHeaders is the list of headers to not include in logging metadata
	DoNotLogHeaders []string `mapstructure:"do_not_log_headers" json:"do_not_log_headers"`
}

// HTTPConfig defines HTTP API / server parameters
type HTTPConfig struct {
	// Server defines HTTP server parameters
	Server HTTPServerConfig `mapstructure:"server_config" json:"server_config" validate:"required,dive"`
	// Logging defines operation logging parameters
	Logging HTTPRequestLogging `mapstructure:"logging_config" json:"logging_config" validate:"required,dive"`
}

// APIEndpointConfig defines API endpoint config
type APIEndpointConfig struct {
	// PathPrefix is the end-point path prefix for the APIs
	PathPrefix string `mapstructure:"path_prefix" json:"path_prefix" validate:"required"`
}

// APIServerConfig defines configuration for the story API server
type APIServerConfig struct {
	// HTTPSetting is the HTTP API / server parameters for the API server
	HTTPSetting HTTPConfig `mapstructure:"api_server" json:"api_server" validate:"required,dive"`
	// Endpoints is the API endpoint config parameters for the API server
	Endpoints APIEndpointConfig `mapstructure:"endpoint_config" json:"endpoint_config" validate:"required,dive"`
}

// ===============================================================================
// Scene Stream Related Config

// StreamConfig defines parameters for the scene stream subsystem
type StreamConfig struct {
	// SweepInterval is the period of the connection lifecycle sweeper in seconds
	SweepInterval int `mapstructure:"sweep_interval_sec" json:"sweep_interval_sec" validate:"gte=1"`
	// IdleTimeout is the max duration a subscriber can go without traffic
	// before the sweeper reaps it, in seconds
	IdleTimeout int `mapstructure:"idle_timeout_sec" json:"idle_timeout_sec" validate:"gte=1"`
}

// ===============================================================================
// Story Record Store Related Config

// DatabaseConfig defines parameters for connecting to the story record store
type DatabaseConfig struct {
	// Driver selects the store backing: "memory" or "postgres"
	Driver string `mapstructure:"driver" json:"driver" validate:"required,oneof=memory postgres"`
	// DSN is the connection string when driver is "postgres"
	DSN string `mapstructure:"dsn" json:"dsn,omitempty" validate:"required_if=Driver postgres"`
}

// ===============================================================================
// Auth Related Config

// AuthTokenConfig pairs an API bearer token with the user identity it maps to
type AuthTokenConfig struct {
	// Token is the bearer token value
	Token string `mapstructure:"token" json:"-" validate:"required"`
	// UserID is the user the token authenticates as
	UserID string `mapstructure:"user_id" json:"user_id" validate:"required"`
	// UserName is the display name of that user
	UserName string `mapstructure:"user_name" json:"user_name"`
}

// AuthConfig defines session verification parameters
type AuthConfig struct {
	// Tokens is the set of recognized API bearer tokens
	Tokens []AuthTokenConfig `mapstructure:"tokens" json:"tokens" validate:"omitempty,dive"`
}

// ===============================================================================
// Complete Config

// SystemConfig defines the complete system config for the story server
type SystemConfig struct {
	// API are the story API server configs
	API APIServerConfig `mapstructure:"api" json:"api" validate:"required,dive"`
	// Stream are the scene stream subsystem configs
	Stream StreamConfig `mapstructure:"stream" json:"stream" validate:"required,dive"`
	// Database are the story record store configs
	Database DatabaseConfig `mapstructure:"database" json:"database" validate:"required,dive"`
	// Auth are the session verification configs
	Auth AuthConfig `mapstructure:"auth" json:"auth"`
}

// ===============================================================================

// InstallDefaultConfigValues installs default config parameters in viper
func InstallDefaultConfigValues() {
	// Default API server settings
	viper.SetDefault("api.endpoint_config.path_prefix", "/")
	viper.SetDefault("api.api_server.server_config.listen_on", "0.0.0.0")
	viper.SetDefault("api.api_server.server_config.listen_port", 3000)
	viper.SetDefault("api.api_server.server_config.read_timeout_sec", 60)
	viper.SetDefault("api.api_server.server_config.write_timeout_sec", 0)
	viper.SetDefault("api.api_server.server_config.idle_timeout_sec", 600)
	viper.SetDefault("api.api_server.logging_config.request_id_header", "Zstory-Request-ID")
	viper.SetDefault(
		"api.api_server.logging_config.do_not_log_headers", []string{
			"WWW-Authenticate", "Authorization", "Proxy-Authenticate", "Proxy-Authorization",
		},
	)

	// Default scene stream settings
	viper.SetDefault("stream.sweep_interval_sec", 60)
	viper.SetDefault("stream.idle_timeout_sec", 300)

	// Default story record store settings
	viper.SetDefault("database.driver", "memory")
}
