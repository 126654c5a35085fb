package core

import (
	"errors"
	"time"
)

// PermanentUnlock is the stored unlock sentinel for an app that never
// re-locks.
const PermanentUnlock int64 = -1

// DefaultMinutesPerFiveCoins is the coin-to-minutes ratio applied when the
// user has not set one.
const DefaultMinutesPerFiveCoins = 10

// FreePassWindow is the fixed unlock window granted by one free pass.
const FreePassWindow = 10 * time.Minute

// Decision is the outcome of tapping an app.
type Decision int

const (
	// Launch opens the app immediately, no charge.
	Launch Decision = iota
	// Paywall presents the coin dialog before the app may open.
	Paywall
)

func (d Decision) String() string {
	if d == Launch {
		return "launch"
	}
	return "paywall"
}

// ErrBadCoinAmount rejects unlock amounts that are not positive multiples
// of five.
var ErrBadCoinAmount = errors.New("coins must be a positive multiple of 5")

// DecideLaunch resolves a tap on an app. Both unlockedUntil and now are
// unix milliseconds; an unlockedUntil of PermanentUnlock never re-locks,
// zero means no window was ever granted.
func DecideLaunch(blocked bool, unlockedUntil, now int64) Decision {
	if !blocked {
		return Launch
	}
	if unlockedUntil == PermanentUnlock {
		return Launch
	}
	if unlockedUntil > 0 && now < unlockedUntil {
		return Launch
	}
	return Paywall
}

// UnlockWindow converts coins spent into an unlock duration at the given
// ratio. Coins are spent in steps of five.
func UnlockWindow(coinsSpent, minutesPerFiveCoins int) (time.Duration, error) {
	if coinsSpent < 5 || coinsSpent%5 != 0 {
		return 0, ErrBadCoinAmount
	}
	if minutesPerFiveCoins <= 0 {
		minutesPerFiveCoins = DefaultMinutesPerFiveCoins
	}
	return time.Duration(minutesPerFiveCoins*(coinsSpent/5)) * time.Minute, nil
}
