// Package ratelimit: key bazlı (userID, userID:netID ...) pencere + cooldown limiter.
//
// Bir pencere içinde max istekten fazlası gelirse key cooldown süresi
// boyunca tamamen bloklanır. Cooldown bitince pencere sıfırlanır.
//
// Hail request spam'ini engellemek için kullanılır: komutan kuyruğu
// aynı kullanıcının tekrarlanan istekleriyle dolmasın.
package ratelimit

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type bucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero value = cooldown yok
}

// Limiter, key bazlı rate limiter.
type Limiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	buckets  map[string]*bucket
	max      int
	window   time.Duration
	cooldown time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// New, yeni limiter oluşturur ve arka plan temizleme goroutine'ini başlatır.
//
//	limiter := ratelimit.New(clock.New(), 3, 10*time.Second, 30*time.Second)
//	if !limiter.Allow(userID) { return pkg.ErrRateLimited }
func New(clk clock.Clock, max int, window, cooldown time.Duration) *Limiter {
	l := &Limiter{
		clock:    clk,
		buckets:  make(map[string]*bucket),
		max:      max,
		window:   window,
		cooldown: cooldown,
		stop:     make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow, key için bir isteğe izin verilip verilmediğini döner ve sayacı artırır.
func (l *Limiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{count: 1, windowStart: now}
		return true
	}

	if !b.cooldownUntil.IsZero() {
		if now.Before(b.cooldownUntil) {
			return false
		}
		b.count = 1
		b.windowStart = now
		b.cooldownUntil = time.Time{}
		return true
	}

	if now.Sub(b.windowStart) > l.window {
		b.count = 1
		b.windowStart = now
		return true
	}

	b.count++
	if b.count > l.max {
		b.cooldownUntil = now.Add(l.cooldown)
		return false
	}
	return true
}

// RetryAfter, key'in kalan cooldown süresini saniye olarak döner (Retry-After header).
// Cooldown yoksa 0.
func (l *Limiter) RetryAfter(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || b.cooldownUntil.IsZero() {
		return 0
	}
	remaining := b.cooldownUntil.Sub(l.clock.Now())
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// Reset, key'in sayacını siler.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Close, temizleme goroutine'ini durdurur.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := l.clock.Ticker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup, hem penceresi hem cooldown'u bitmiş bucket'ları siler.
func (l *Limiter) cleanup() {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		windowExpired := now.Sub(b.windowStart) > l.window
		cooldownExpired := b.cooldownUntil.IsZero() || now.After(b.cooldownUntil)
		if windowExpired && cooldownExpired {
			delete(l.buckets, key)
		}
	}
}
