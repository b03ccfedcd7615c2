package ejv

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/geoequity/internal/indicators"
)

// fakeReader is a scripted indicators.Reader.
type fakeReader struct {
	wage        float64
	hasWage     bool
	local       indicators.EconomicIndicators
	tractIncome float64
	employees   int
	hasEmploy   bool

	wageCalls  atomic.Int32
	localCalls atomic.Int32
	tractCalls atomic.Int32
	empCalls   atomic.Int32

	// barrier, when set, is awaited by every call before returning.
	barrier func()
}

func newFakeReader() *fakeReader {
	return &fakeReader{local: indicators.DefaultIndicators(), tractIncome: indicators.DefaultMedianIncome}
}

func (f *fakeReader) wait() {
	if f.barrier != nil {
		f.barrier()
	}
}

func (f *fakeReader) FetchWageForOccupation(context.Context, string) (float64, bool) {
	f.wageCalls.Add(1)
	f.wait()
	return f.wage, f.hasWage
}

func (f *fakeReader) FetchLocalIndicators(context.Context, string) indicators.EconomicIndicators {
	f.localCalls.Add(1)
	f.wait()
	return f.local
}

func (f *fakeReader) FetchMedianIncomeForTract(context.Context, string, string, string) float64 {
	f.tractCalls.Add(1)
	f.wait()
	return f.tractIncome
}

func (f *fakeReader) FetchTypicalEmployees(context.Context, string) (int, bool) {
	f.empCalls.Add(1)
	f.wait()
	return f.employees, f.hasEmploy
}

// recordingObserver captures observer events.
type recordingObserver struct {
	mu        sync.Mutex
	fallbacks []string
	scores    []string
}

func (r *recordingObserver) FallbackUsed(stage, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, stage)
}

func (r *recordingObserver) ExternalCallFailed(string, error) {}

func (r *recordingObserver) ScoreComputed(kind string, _ float64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = append(r.scores, kind)
}

func (r *recordingObserver) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fallbacks...)
}

func fixedClock() time.Time {
	return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
}
