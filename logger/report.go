package logger

import (
	"sync"
	"sync/atomic"
)

// Per-component warning and error counters, accumulated over one run and
// emitted in the final summary.
var (
	warnCounts  sync.Map // map[string]*int64
	errorCounts sync.Map // map[string]*int64
)

func recordWarn(component string) {
	counterFor(&warnCounts, component).Add(1)
}

func recordError(component string) {
	counterFor(&errorCounts, component).Add(1)
}

func counterFor(m *sync.Map, component string) *atomic.Int64 {
	if v, ok := m.Load(component); ok {
		return v.(*atomic.Int64)
	}
	v, _ := m.LoadOrStore(component, &atomic.Int64{})
	return v.(*atomic.Int64)
}

func snapshotCounts(m *sync.Map) map[string]int64 {
	out := make(map[string]int64)
	m.Range(func(k, v any) bool {
		if n := v.(*atomic.Int64).Load(); n > 0 {
			out[k.(string)] = n
		}
		return true
	})
	return out
}

// LogRunSummary emits the final success/failure line for a run together with
// the accumulated warning and error counts per component.
func LogRunSummary(log *Log, operation string, success bool, fields Fields) {
	if fields == nil {
		fields = make(Fields)
	}
	fields["operation"] = operation
	fields["success"] = success

	if warns := snapshotCounts(&warnCounts); len(warns) > 0 {
		fields["warnings"] = warns
	}
	if errs := snapshotCounts(&errorCounts); len(errs) > 0 {
		fields["errors"] = errs
	}

	entry := log.WithComponent("summary").WithFields(fields)
	if success {
		entry.Info("run completed")
	} else {
		entry.Error("run failed")
	}
}
