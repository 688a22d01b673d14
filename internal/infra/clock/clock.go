// Package clock supplies the authoritative revocation timestamp source.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns the current time as Unix-epoch seconds.
type Clock interface {
	Now() int64
}

type System struct{}

func (System) Now() int64 {
	return time.Now().Unix()
}

// Manual is a settable clock for tests and replay tooling.
type Manual struct {
	now atomic.Int64
}

func NewManual(now int64) *Manual {
	m := &Manual{}
	m.now.Store(now)
	return m
}

func (m *Manual) Now() int64 {
	return m.now.Load()
}

func (m *Manual) Set(now int64) {
	m.now.Store(now)
}

func (m *Manual) Advance(d time.Duration) int64 {
	return m.now.Add(int64(d / time.Second))
}
