package notify

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const DefaultReconnectDelay = 3 * time.Second

// ReconnectPolicy 决定断线后等待多久再重连，连接成功后会被 Reset
type ReconnectPolicy interface {
	Next() time.Duration
	Reset()
}

// FixedDelay 每次都等待相同的时间，不限制重连次数
type FixedDelay time.Duration

func (d FixedDelay) Next() time.Duration {
	return time.Duration(d)
}

func (FixedDelay) Reset() {}

// Backoff 是带随机抖动、有上限的指数退避
type Backoff struct {
	b *backoff.ExponentialBackOff
}

func NewBackoff(initial, max time.Duration) *Backoff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return &Backoff{b: b}
}

func (p *Backoff) Next() time.Duration {
	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return p.b.MaxInterval
	}
	return d
}

func (p *Backoff) Reset() {
	p.b.Reset()
}
