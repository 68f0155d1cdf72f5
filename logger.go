package symcanon

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var pkgLogger atomic.Pointer[zap.Logger]

func init() { pkgLogger.Store(zap.NewNop()) }

// SetLogger routes the package's diagnostics to l. A nil logger silences them.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	pkgLogger.Store(l.Named("symcanon"))
}

func logger() *zap.Logger { return pkgLogger.Load() }
