package regsync

import "github.com/sirupsen/logrus"

// ProcessorOptions configures a Processor.
type ProcessorOptions struct {
	Logger logrus.FieldLogger
}

// ProcessorOption is a functional option for configuring NewProcessor.
type ProcessorOption func(*ProcessorOptions)

func defaultOptions() *ProcessorOptions {
	return &ProcessorOptions{
		Logger: logrus.StandardLogger(),
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l logrus.FieldLogger) ProcessorOption {
	return func(o *ProcessorOptions) {
		if l != nil {
			o.Logger = l
		}
	}
}
