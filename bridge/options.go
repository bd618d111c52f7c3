package bridge

import (
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/wippyai/callbridge/marshal"
)

// Option configures a Bridge.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	observers observers
	marshal   []marshal.Option
}

// WithLogger sets the logger for the bridge and its dispatcher.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(ob Observer) Option {
	return func(o *options) {
		if ob != nil {
			o.observers = append(o.observers, ob)
		}
	}
}

// WithTextEncoding sets the encoding of native text payloads.
// The default is strict UTF-8.
func WithTextEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		o.marshal = append(o.marshal, marshal.WithEncoding(enc))
	}
}

// WithMarshalOptions passes options through to the payload adapter.
func WithMarshalOptions(opts ...marshal.Option) Option {
	return func(o *options) {
		o.marshal = append(o.marshal, opts...)
	}
}
