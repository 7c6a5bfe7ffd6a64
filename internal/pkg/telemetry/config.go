// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package telemetry

// config contains configuration options for the telemetry package.
type config struct {
	serviceID       string
	endpoint        string
	traceSampleRate int32
}

// newConfig returns a config configured with options.
func newConfig(options []Option) config {
	conf := config{}
	for _, o := range options {
		conf = o.apply(conf)
	}
	return conf
}

// Option applies a configuration option value to the telemetry package.
type Option interface {
	apply(config) config
}

// optionFunc applies a set of options to a config.
type optionFunc func(config) config

// apply returns a config with option(s) applied.
func (o optionFunc) apply(conf config) config {
	return o(conf)
}

// WithServiceInstanceID sets the service instance ID for the telemetry
// package.
//
// This is expected to be the node name when running as a bootstrap container.
func WithServiceInstanceID(id string) Option {
	return optionFunc(func(cfg config) config {
		cfg.serviceID = id
		return cfg
	})
}

// WithEndpoint sets the endpoint for the OTLP exporter.
func WithEndpoint(endpoint string) Option {
	return optionFunc(func(cfg config) config {
		cfg.endpoint = endpoint
		return cfg
	})
}

// WithTraceSampleRate sets the number of samples to collect per million spans.
func WithTraceSampleRate(rate int) Option {
	return optionFunc(func(cfg config) config {
		cfg.traceSampleRate = int32(rate)
		return cfg
	})
}
