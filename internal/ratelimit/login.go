package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyLoginIP    = "auth:login:ip:%s"
	keyLoginEmail = "auth:login:email:%s"

	loginIPRate     = 10.0 / 60.0
	loginIPBurst    = 10
	loginEmailRate  = 5.0 / 300.0
	loginEmailBurst = 5
)

type LoginDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LoginLimiter throttles password attempts per client IP and per email.
type LoginLimiter struct {
	bucket *TokenBucket
}

func NewLoginLimiter(client *redis.Client) *LoginLimiter {
	if client == nil {
		return nil
	}
	return &LoginLimiter{bucket: NewTokenBucket(client)}
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *LoginLimiter) Allow(ctx context.Context, ip, email string) (LoginDecision, error) {
	if !l.Enabled() {
		return LoginDecision{Allowed: true}, nil
	}

	ip = strings.TrimSpace(ip)
	if ip != "" {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyLoginIP, ip), loginIPRate, loginIPBurst)
		if err != nil {
			return LoginDecision{}, err
		}
		if !res.Allowed {
			return LoginDecision{Allowed: false, RetryAfter: res.RetryAfter}, nil
		}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyLoginEmail, email), loginEmailRate, loginEmailBurst)
		if err != nil {
			return LoginDecision{}, err
		}
		if !res.Allowed {
			return LoginDecision{Allowed: false, RetryAfter: res.RetryAfter}, nil
		}
	}

	return LoginDecision{Allowed: true}, nil
}
