package shutdown

import (
	"os"

	"github.com/rs/zerolog/log"
)

// Closer is a named resource released on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// Shutdown releases closers in reverse registration order. Failures are
// logged and do not stop the remaining closers.
func Shutdown(closers ...Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if c.Close == nil {
			continue
		}
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("resource", c.Name).Msg("Failed to close resource")
			continue
		}
		log.Debug().Str("resource", c.Name).Msg("Closed resource")
	}
	log.Info().Msg("Shutdown complete")
}

var exit = os.Exit

// ShutdownWithError releases closers and exits non-zero.
func ShutdownWithError(err error, msg string, closers ...Closer) {
	log.Error().Err(err).Msg(msg)
	Shutdown(closers...)
	exit(1)
}
