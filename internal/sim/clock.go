// Пакет sim — источники времени и случайности для симуляции передачи.
// В рабочем режиме используются RealClock и SystemRandom, в тестах —
// ManualClock и FixedRandom, что делает симуляцию детерминированной.
package sim

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"
)

// Clock — абстракция времени для симуляции.
type Clock interface {
	// Now возвращает текущее время.
	Now() time.Time
	// Sleep ждёт d или отмены ctx. При отмене возвращает ctx.Err().
	Sleep(ctx context.Context, d time.Duration) error
	// AfterFunc вызывает f в отдельной горутине через d.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer — отложенный вызов, который можно отменить.
type Timer interface {
	// Stop отменяет вызов. Возвращает false, если вызов уже состоялся или отменён.
	Stop() bool
}

// RealClock — Clock на основе пакета time.
type RealClock struct{}

// Now возвращает time.Now().
func (RealClock) Now() time.Time { return time.Now() }

// Sleep ждёт d или отмены ctx.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AfterFunc — обёртка над time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualClock — управляемые часы для тестов.
//
// Sleep не ждёт: он лишь уступает планировщик и проверяет ctx.
// Таймеры AfterFunc срабатывают только при Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
	sleeps int
}

// NewManualClock создаёт часы, начинающиеся с момента start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now возвращает виртуальное время.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep возвращается сразу, если ctx не отменён.
func (c *ManualClock) Sleep(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps++
	c.mu.Unlock()
	runtime.Gosched()
	return ctx.Err()
}

// Sleeps возвращает число вызовов Sleep.
func (c *ManualClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// AfterFunc регистрирует таймер, который сработает при Advance.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending возвращает число ожидающих таймеров.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance сдвигает время на d и синхронно вызывает наступившие таймеры
// в порядке их срабатывания.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []*manualTimer
	for _, t := range c.timers {
		if !t.at.After(c.now) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	f     func()
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, other := range c.timers {
		if other == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}
