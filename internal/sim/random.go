package sim

import "math/rand/v2"

// Random — источник равномерно распределённых чисел в [0, 1).
type Random interface {
	Float64() float64
}

// SystemRandom — Random на глобальном генераторе math/rand/v2.
// Безопасен для конкурентного использования.
type SystemRandom struct{}

// Float64 возвращает псевдослучайное число в [0, 1).
func (SystemRandom) Float64() float64 { return rand.Float64() }

// FixedRandom всегда возвращает одно и то же значение.
type FixedRandom float64

// Float64 возвращает зафиксированное значение.
func (r FixedRandom) Float64() float64 { return float64(r) }
