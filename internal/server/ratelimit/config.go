package ratelimit

import "time"

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string  // Endpoint path pattern (supports prefix matching)
	Method string  // HTTP method (GET, POST, etc.)
	Rate   float64 // Requests per second; zero means unlimited
	Burst  int
}

// NewConfig builds a configuration with the given default per-client rate.
// A non-positive rate disables limiting.
func NewConfig(perSecond float64, burst int) *Config {
	if perSecond <= 0 {
		return &Config{Enabled: false}
	}
	return &Config{
		Enabled:         true,
		Rate:            perSecond,
		Burst:           burst,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the limits for endpoints that call the model.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Profile synthesis and edits
		{Path: "/profile-sessions", Method: "POST", Rate: 10.0 / 3600, Burst: 3},
		{Path: "/profile-sessions/", Method: "POST", Rate: 60.0 / 3600, Burst: 5},
		// User creation
		{Path: "/users", Method: "POST", Rate: 10.0 / 3600, Burst: 2},
		// Evaluation runs fan out one call per retrieved job
		{Path: "/users/", Method: "POST", Rate: 10.0 / 3600, Burst: 2},
	}
}
