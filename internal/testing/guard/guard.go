// Package guard keeps test binaries away from live services. Importing it
// marks the process as a test run and blanks every service address the
// environment left unset, so stores fall back to memory.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

// liveServices default to local daemons in the configuration.
var liveServices = []string{"REDIS_ADDR", "PG_DSN"}

func init() {
	once.Do(func() {
		if os.Getenv("ODYSSEY_TEST_MODE") == "" {
			_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		}
		for _, key := range liveServices {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, "")
			}
		}
	})
}
