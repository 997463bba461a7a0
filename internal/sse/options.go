package sse

import "time"

const (
	DefaultEventBufferSize  = 1000
	DefaultClientBufferSize = 100
	DefaultShutdownTimeout  = 5 * time.Second
	DefaultMaxClients       = 1000
)

// BrokerOption configures a broker.
type BrokerOption func(*broker)

// WithEventBufferSize sets the main event channel size.
func WithEventBufferSize(size int) BrokerOption {
	return func(b *broker) {
		if size > 0 {
			b.eventBufferSize = size
		}
	}
}

// WithClientBufferSize sets the default per-client buffer size.
func WithClientBufferSize(size int) BrokerOption {
	return func(b *broker) {
		if size > 0 {
			b.clientBufferSize = size
		}
	}
}

// WithMaxClients sets the maximum number of concurrent clients.
func WithMaxClients(maxClients int) BrokerOption {
	return func(b *broker) {
		b.maxClients = maxClients
	}
}

// ClientOption configures a subscription.
type ClientOption func(*ClientOptions)

// WithFilter sets an event filter for the client.
func WithFilter(filter EventFilter) ClientOption {
	return func(opts *ClientOptions) {
		opts.Filter = filter
	}
}

// WithBufferSize sets the client's event buffer size.
func WithBufferSize(size int) ClientOption {
	return func(opts *ClientOptions) {
		if size > 0 {
			opts.BufferSize = size
		}
	}
}

// WithJobFilter passes only events for a specific job. An empty jobID
// passes all job events.
func WithJobFilter(jobID string) ClientOption {
	return WithFilter(func(event Event) bool {
		if jobID == "" {
			return true
		}
		switch data := event.Data.(type) {
		case JobStatusData:
			return data.JobID == jobID
		case JobProgressData:
			return data.JobID == jobID
		case JobCompletedData:
			return data.JobID == jobID
		default:
			return false
		}
	})
}
