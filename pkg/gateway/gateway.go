// Package gateway provides the public API for embedding the edge gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/edge-gateway/internal/runtime"
)

// Gateway is the main entry point for running the edge gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// ConfigProvider supplies configuration to a Gateway.
type ConfigProvider = runtime.ConfigProvider

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithLogger(logger),
//	    gateway.WithConfigFile("config.yaml"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfigFile     = runtime.WithConfigFile
	WithConfigProvider = runtime.WithConfigProvider

	// Storage
	WithAccessLogStore = runtime.WithAccessLogStore

	// Advanced options
	WithLogger    = runtime.WithLogger
	WithTransport = runtime.WithTransport
	WithClock     = runtime.WithClock
	WithListener  = runtime.WithListener
)
