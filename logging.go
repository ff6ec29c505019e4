package octio

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// pkgLogger backs this package's debug-build invariant checks: a double
// recycle of a chunk, and a pool drop past its soft cap. Silent (disabled
// level) until an embedder opts in with SetLogger, matching zerolog's own
// convention of a no-op logger by default.
var pkgLogger atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.Disabled)
	pkgLogger.Store(&l)
}

// SetLogger installs the zerolog.Logger used for this package's debug-build
// diagnostics (double recycle detection, pool soft-cap drops). Passing a
// logger with a level below zerolog.Disabled turns those log lines on; the
// double-recycle check itself runs, and panics, regardless of the logger.
func SetLogger(l zerolog.Logger) {
	pkgLogger.Store(&l)
}

func logger() *zerolog.Logger {
	return pkgLogger.Load()
}
