package httplog

import (
	"os"
	"os/signal"
	"syscall"
)

// FlushSignals make a running Logger flush its write buffer.
// StopSignals make it flush, close the file and return from Run.
var (
	FlushSignals = []os.Signal{syscall.SIGHUP}                  //nolint:gochecknoglobals
	StopSignals  = []os.Signal{syscall.SIGTERM, syscall.SIGINT} //nolint:gochecknoglobals
)

// Notify relays FlushSignals and StopSignals to the returned channel.
// Pass the channel as Config.Signals. Call stop to unregister.
func Notify() (signals <-chan os.Signal, stop func()) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, append(append([]os.Signal{}, FlushSignals...), StopSignals...)...)

	return sigc, func() { signal.Stop(sigc) }
}

// handleSignal runs in the Run loop, never in a signal handler, so it may touch the file.
func (l *Logger) handleSignal(sig os.Signal) (bool, error) {
	switch {
	case isOneOf(sig, FlushSignals):
		l.log.Info("Signal received, flushing buffers", "signal", sig.String())
		return false, l.Flush()
	case isOneOf(sig, StopSignals):
		l.log.Info("Signal received, flushing buffers and exiting", "signal", sig.String())
		return true, l.close()
	default:
		l.log.Debug("Ignoring signal", "signal", sig.String())
		return false, nil
	}
}

func isOneOf(sig os.Signal, list []os.Signal) bool {
	for _, s := range list {
		if s == sig {
			return true
		}
	}

	return false
}
