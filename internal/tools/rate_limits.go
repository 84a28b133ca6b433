// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrToolRateLimited indicates the per-minute budget of a tool is spent.
	ErrToolRateLimited = errors.New("tool rate limit exceeded")

	// ErrToolInCooldown indicates a tool was called again too soon.
	ErrToolInCooldown = errors.New("tool is cooling down")
)

// RateLimitConfig bounds how often the model may call each tool. Zero
// values disable the corresponding limit.
type RateLimitConfig struct {
	DefaultPerMinute int
	PerTool          map[string]int
	Cooldowns        map[string]time.Duration
}

// DefaultRateLimitConfig returns the default rate limiting configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{DefaultPerMinute: 120}
}

func (c RateLimitConfig) perMinute(name string) int {
	if rate, ok := c.PerTool[name]; ok {
		return rate
	}
	return c.DefaultPerMinute
}

// toolRateLimiter pairs a token bucket with an optional cooldown between
// calls.
type toolRateLimiter struct {
	mu          sync.Mutex
	bucket      *rate.Limiter
	cooldown    time.Duration
	nextAllowed time.Time
	now         func() time.Time
}

func newToolRateLimiter(ratePerMinute int, cooldown time.Duration, now func() time.Time) *toolRateLimiter {
	if ratePerMinute <= 0 && cooldown <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	rl := &toolRateLimiter{cooldown: cooldown, now: now}
	if ratePerMinute > 0 {
		rl.bucket = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), ratePerMinute)
	}
	return rl
}

func (r *toolRateLimiter) Allow() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !r.nextAllowed.IsZero() && now.Before(r.nextAllowed) {
		return fmt.Errorf("%w: retry after %s", ErrToolInCooldown, r.nextAllowed.Sub(now).Round(time.Second))
	}
	if r.bucket != nil && !r.bucket.AllowN(now, 1) {
		return ErrToolRateLimited
	}
	if r.cooldown > 0 {
		r.nextAllowed = now.Add(r.cooldown)
	}
	return nil
}
