package params

type ListenerConfig struct {
	// Network is the network to listen on.
	// The network must be "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	Network string `mapstructure:"network" validate:"oneof=tcp tcp4 tcp6 unix unixpacket"`
	// Address is the address to listen on.
	Address string `mapstructure:"address" validate:"required"`
}
