package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MEDTRACK_TEST_MODE") == "" {
			_ = os.Setenv("MEDTRACK_TEST_MODE", "1")
		}
	})
}
