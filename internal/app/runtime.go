package app

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

func loadTestMode() {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(testModeEnv)))
	testMode.Store(err == nil && on)
}

// InTestMode reports whether binaries should exit before opening Postgres or
// Redis. Any value strconv.ParseBool accepts as true enables it.
func InTestMode() bool {
	testModeOnce.Do(loadTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads ODYSSEY_TEST_MODE.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	loadTestMode()
}

// SkipReason is logged by binaries that exit early in test mode.
func SkipReason(component string) string {
	return testModeEnv + " is set, " + component + " will not connect to postgres or redis"
}
