package flowstate

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
)

// DefaultListenAddress is the default TCP address for the gRPC listener.
//
// It is overridden by the WithListenAddress() option.
var DefaultListenAddress = ":50555"

// NetworkOption configures the networking-related behavior of an engine.
type NetworkOption func(*networkOptions)

// WithNetworking returns an engine option that enables the engine's gRPC
// server.
//
// The server exposes the standard gRPC health checking service, which reports
// the engine as serving while it is running.
func WithNetworking(options ...NetworkOption) EngineOption {
	n := resolveNetworkOptions(options...)

	return func(opts *engineOptions) {
		opts.Network = n
	}
}

// WithListenAddress returns a network option that sets the TCP address for the
// engine's gRPC listener.
//
// If this option is omitted or addr is empty, DefaultListenAddress is used.
func WithListenAddress(addr string) NetworkOption {
	if addr != "" {
		_, port, err := net.SplitHostPort(addr)
		if err != nil {
			panic(fmt.Sprintf("invalid listen address: %s", err))
		}

		if _, err := net.LookupPort("tcp", port); err != nil {
			panic(fmt.Sprintf("invalid listen address: %s", err))
		}
	}

	return func(opts *networkOptions) {
		opts.ListenAddress = addr
	}
}

// WithServerOptions returns a network option that adds gRPC server options.
func WithServerOptions(options ...grpc.ServerOption) NetworkOption {
	return func(opts *networkOptions) {
		opts.ServerOptions = append(opts.ServerOptions, options...)
	}
}

// networkOptions is a container for a fully-resolved set of networking options.
type networkOptions struct {
	ListenAddress string
	ServerOptions []grpc.ServerOption
}

// resolveNetworkOptions returns a fully-populated set of network options built
// from the given set of option functions.
func resolveNetworkOptions(options ...NetworkOption) *networkOptions {
	opts := &networkOptions{}

	for _, o := range options {
		o(opts)
	}

	if opts.ListenAddress == "" {
		opts.ListenAddress = DefaultListenAddress
	}

	return opts
}
