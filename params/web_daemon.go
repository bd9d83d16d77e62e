package params

import "path/filepath"

type WebDaemonConfig struct {
	ListenerConfig `mapstructure:",squash"`

	// DataDir holds the last-known state database.
	// An empty DataDir keeps last-known samples in memory only.
	DataDir string `mapstructure:"datadir"`

	// Routing configures the nearest-road proxy.
	Routing *RoutingConfig `mapstructure:"routing" validate:"omitempty"`
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir:        filepath.Join(DatadirRoot, "webd"),
		ListenerConfig: DefaultWebListenerConfig(),
		Routing:        DefaultRoutingConfig(),
	}
}

func DefaultTestWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		DataDir: "",
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3333",
		},
		Routing: DefaultRoutingConfig(),
	}
}
