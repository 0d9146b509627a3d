package config

import "time"

type Config interface {
	EnvConfig
	ServicesConfig
	SessionConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

// ServicesConfig locates the backend microservices the console talks to.
type ServicesConfig interface {
	GetAuthAPIURL() string
	GetCatalogAPIURL() string
	GetImageAPIURL() string
	GetUpstreamTimeout() time.Duration
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Services
	Session
	Cors
}

func New() Config {
	return mainConfig{}
}
