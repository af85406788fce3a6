package logger

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// ComponentCounts returns the warn and error counts recorded for component.
func ComponentCounts(component string) (warns, errors int64) {
	v, ok := components.Load(component)
	if !ok {
		return 0, 0
	}
	cs := v.(*componentStat)
	return atomic.LoadInt64(&cs.warns), atomic.LoadInt64(&cs.errors)
}

// StatsProvider contributes extra fields to each runtime report.
type StatsProvider func() Fields

// StartReport logs a runtime report every interval until ctx is done.
func StartReport(ctx context.Context, log *Log, interval time.Duration, provider StatsProvider) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log, provider)
			}
		}
	}()
}

func logReport(log *Log, provider StatsProvider) {
	log.WithComponent("report").WithFields(reportFields(provider)).Info("runtime report")
}

func reportFields(provider StatsProvider) Fields {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	names := []string{}
	components.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	sort.Strings(names)

	perComponent := make(map[string]map[string]int64, len(names))
	for _, name := range names {
		w, e := ComponentCounts(name)
		perComponent[name] = map[string]int64{"warns": w, "errors": e}
	}

	fields := Fields{
		"goroutines": runtime.NumGoroutine(),
		"heap_mb":    int64(mem.HeapAlloc) / 1024 / 1024,
		"components": perComponent,
	}
	if provider != nil {
		for k, v := range provider() {
			fields[k] = v
		}
	}
	return fields
}
