// Package clock は現在時刻の取得を差し替え可能にする
package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻を返す
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem は実時間の Clock を返す
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Fixed はテスト用の固定時刻 Clock
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed は指定時刻で止まった Clock を返す
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance は時刻を進める
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set は時刻を設定する
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
