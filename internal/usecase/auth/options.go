package auth

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultAccessTTL   = 60 * time.Minute
	defaultRefreshTTL  = 30 * 24 * time.Hour
	defaultRecoveryTTL = 30 * time.Minute
)

// TTLs holds the lifetime of each token kind.
type TTLs struct {
	Access   time.Duration
	Refresh  time.Duration
	Recovery time.Duration
}

// Option configures Service behavior.
type Option func(*Service)

// WithTTLs overrides token lifetimes. Zero values keep the defaults.
func WithTTLs(ttl TTLs) Option {
	return func(s *Service) {
		if ttl.Access > 0 {
			s.ttl.Access = ttl.Access
		}
		if ttl.Refresh > 0 {
			s.ttl.Refresh = ttl.Refresh
		}
		if ttl.Recovery > 0 {
			s.ttl.Recovery = ttl.Recovery
		}
	}
}

// WithClock overrides the time source used for revocation bookkeeping.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.nowFunc = fn
		}
	}
}

// WithLogger sets the logger used for auth events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}
