package ratelimiter

import "time"

// Limiter decides whether a client may make another request. When it may
// not, the duration says how long to wait before retrying.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

type Config struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}
