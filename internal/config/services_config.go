package config

import "time"

type Services struct{}

var _ ServicesConfig = Services{}

func (Services) GetAuthAPIURL() string {
	return GetEnv("AUTH_API_URL", "http://localhost:8081")
}

func (Services) GetCatalogAPIURL() string {
	return GetEnv("CATALOG_API_URL", "http://localhost:8082")
}

func (Services) GetImageAPIURL() string {
	return GetEnv("IMAGE_API_URL", "http://localhost:8083")
}

// GetUpstreamTimeout bounds every call to a backend service, so a hung refresh cannot hold the session forever.
func (Services) GetUpstreamTimeout() time.Duration {
	return GetEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
}
