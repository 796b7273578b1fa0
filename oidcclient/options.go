package oidcclient

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option defines a common functional options type
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		o(opts)
	}
}

// DefaultFlowExpiry bounds how long a user may take to complete a started
// login flow.
const DefaultFlowExpiry = 10 * time.Minute

// clientOptions is the set of available options
type clientOptions struct {
	withStore      Store
	withLogger     hclog.Logger
	withFlowExpiry time.Duration
}

// clientDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func clientDefaults() clientOptions {
	return clientOptions{
		withFlowExpiry: DefaultFlowExpiry,
	}
}

// getClientOpts gets the defaults and applies the opt overrides passed in.
func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithStore provides an optional session store; the default is an in-memory
// store that forgets the session on process exit.
func WithStore(s Store) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withStore = s
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withLogger = l
		}
	}
}

// WithFlowExpiry overrides how long a started login flow stays completable.
func WithFlowExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok {
			o.withFlowExpiry = d
		}
	}
}
