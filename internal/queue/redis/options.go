package redis

import "time"

// ReaderFactoryOptions represents configuration options for the readers
// created by a ReaderFactory.
type ReaderFactoryOptions struct {
	// HeartbeatInterval specifies how frequently a reader announces that it is
	// alive.
	// Min: 1 second
	// Max: 5 minutes
	// Default: 30 seconds
	HeartbeatInterval time.Duration
	// DeadConsumerThreshold specifies how much time must elapse since a reader's
	// last heartbeat for it to be considered dead and its unsettled messages
	// reclaimed.
	// Min: 5 seconds
	// Max: 5 minutes
	// Default: 1 minute
	DeadConsumerThreshold time.Duration
	// CleanerInterval specifies how frequently to reclaim messages from dead
	// readers.
	// Min: 1 second
	// Max: 5 minutes
	// Default: 1 minute
	CleanerInterval time.Duration
	// SchedulerInterval specifies how frequently messages whose scheduled time
	// has elapsed are moved to the pending list.
	// Min: 100 milliseconds
	// Max: 5 minutes
	// Default: 5 seconds
	SchedulerInterval time.Duration
	// ReceiveTimeout specifies how long a single blocking pop may wait for a
	// message before the reader checks whether it should stop.
	// Min: 1 second
	// Max: 1 minute
	// Default: 5 seconds
	ReceiveTimeout time.Duration
	// MaxMaintenanceFailures specifies the maximum number of consecutive times
	// that heartbeats, scheduling, or cleaning may fail before the reader is
	// considered broken.
	// Min: 1
	// Max: 10
	// Default: 3
	MaxMaintenanceFailures uint8
}

func clampDuration(
	value time.Duration,
	lower time.Duration,
	upper time.Duration,
	def time.Duration,
) time.Duration {
	switch {
	case value == 0:
		return def
	case value < lower:
		return lower
	case value > upper:
		return upper
	}
	return value
}

func (r *ReaderFactoryOptions) applyDefaults() {
	r.HeartbeatInterval = clampDuration(
		r.HeartbeatInterval,
		time.Second,
		5*time.Minute,
		30*time.Second,
	)
	r.DeadConsumerThreshold = clampDuration(
		r.DeadConsumerThreshold,
		5*time.Second,
		5*time.Minute,
		time.Minute,
	)
	r.CleanerInterval = clampDuration(
		r.CleanerInterval,
		time.Second,
		5*time.Minute,
		time.Minute,
	)
	r.SchedulerInterval = clampDuration(
		r.SchedulerInterval,
		100*time.Millisecond,
		5*time.Minute,
		5*time.Second,
	)
	r.ReceiveTimeout = clampDuration(
		r.ReceiveTimeout,
		time.Second,
		time.Minute,
		5*time.Second,
	)
	switch {
	case r.MaxMaintenanceFailures == 0:
		r.MaxMaintenanceFailures = 3
	case r.MaxMaintenanceFailures > 10:
		r.MaxMaintenanceFailures = 10
	}
}
