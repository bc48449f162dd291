package auth

import "time"

// 実時間のClock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
