package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// skippedFrames are function-name fragments that never count as a call site.
var skippedFrames = []string{"sirupsen/logrus", "cryptolens/logger"}

// callerHook points entry.Caller at the first frame outside logrus and
// this package, so the Entry wrappers do not show up as the caller.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(6, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !skipFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func skipFrame(fn string) bool {
	for _, s := range skippedFrames {
		if strings.Contains(fn, s) {
			return true
		}
	}
	return false
}
