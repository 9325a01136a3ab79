package resilience

import (
	"github.com/kbukum/resilkit/logger"
)

func quiet() Option {
	return WithLogger(logger.NewNop())
}
