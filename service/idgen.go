package service

import (
	"strconv"
	"sync/atomic"
	"time"
)

type IDGenerator interface {
	NextID() string
}

// TimeIDGenerator issues Unix-millisecond ids that strictly increase, even
// when several are requested within the same millisecond.
type TimeIDGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

func NewTimeIDGenerator() *TimeIDGenerator {
	return &TimeIDGenerator{now: time.Now}
}

func (g *TimeIDGenerator) NextID() string {
	for {
		prev := g.last.Load()
		next := g.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if g.last.CompareAndSwap(prev, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}
