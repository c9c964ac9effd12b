package tokens

import (
	"time"

	"golang.org/x/time/rate"
)

// Bucket refills tokensPerInterval tokens every interval, holding at most
// tokensPerInterval. It starts full.
type Bucket struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewBucket creates a bucket. A non-positive interval defaults to one minute.
func NewBucket(tokensPerInterval int, interval time.Duration) *Bucket {
	return newBucket(tokensPerInterval, interval, time.Now)
}

func newBucket(tokensPerInterval int, interval time.Duration, now func() time.Time) *Bucket {
	if interval <= 0 {
		interval = time.Minute
	}
	r := rate.Limit(float64(tokensPerInterval) / interval.Seconds())
	lim := rate.NewLimiter(r, tokensPerInterval)
	// Pin the limiter's clock to ours so it starts full at now().
	lim.SetLimitAt(now(), r)
	return &Bucket{limiter: lim, now: now}
}

// Consume takes n tokens if available.
func (b *Bucket) Consume(n int) bool {
	return b.limiter.AllowN(b.now(), n)
}

// Tokens returns the tokens currently available.
func (b *Bucket) Tokens() float64 {
	return b.limiter.TokensAt(b.now())
}
