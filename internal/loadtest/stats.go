package loadtest

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Samuel-Jeong/RestApiSimulator/internal/result"
)

// sample is one completed (or rejected) request as reported by a worker.
type sample struct {
	status     result.TestStatus
	statusCode int
	durationMs float64
	errorKind  string
}

// aggregator is the only state mutated by concurrent load test workers.
// Every update happens under mu; buckets are keyed by the second in which a
// request completed, so a bucket is sealed as soon as the wall clock crosses
// into the next second and is never touched again.
type aggregator struct {
	mu sync.Mutex

	start time.Time

	total     int
	successes int
	failures  int
	errors    int
	rejected  int

	durations   []float64
	statusCodes map[int]int
	errorKinds  map[string]int

	timeline map[int]*bucketAccum
	active   int
}

// bucketAccum accumulates one timeline second before it is sealed.
type bucketAccum struct {
	requests  int
	successes int
	failures  int
	errors    int
	totalMs   float64
	timedMs   int
}

func newAggregator(start time.Time) *aggregator {
	return &aggregator{
		start:       start,
		durations:   make([]float64, 0, 1024),
		statusCodes: make(map[int]int),
		errorKinds:  make(map[string]int),
		timeline:    make(map[int]*bucketAccum),
	}
}

// record credits a completed request to the current elapsed second.
func (a *aggregator) record(s sample, completedAt time.Time) {
	second := int(completedAt.Sub(a.start).Seconds())
	if second < 0 {
		second = 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	bucket := a.bucket(second)
	bucket.requests++

	switch s.status {
	case result.StatusSuccess:
		a.successes++
		bucket.successes++
	case result.StatusFailure:
		a.failures++
		bucket.failures++
	default:
		a.errors++
		bucket.errors++
	}

	if s.durationMs > 0 {
		a.durations = append(a.durations, s.durationMs)
		bucket.totalMs += s.durationMs
		bucket.timedMs++
	}
	if s.statusCode > 0 {
		a.statusCodes[s.statusCode]++
	}
	if s.errorKind != "" {
		a.errorKinds[s.errorKind]++
	}
}

// recordRejected counts a dispatch dropped at the concurrency ceiling.
// Rejections are failures with an explicit error kind; they carry no
// response time.
func (a *aggregator) recordRejected(rejectedAt time.Time, kind string) {
	a.record(sample{status: result.StatusFailure, errorKind: kind}, rejectedAt)
	a.mu.Lock()
	a.rejected++
	a.mu.Unlock()
}

func (a *aggregator) bucket(second int) *bucketAccum {
	b, ok := a.timeline[second]
	if !ok {
		b = &bucketAccum{}
		a.timeline[second] = b
	}
	return b
}

func (a *aggregator) addActive(delta int) {
	a.mu.Lock()
	a.active += delta
	a.mu.Unlock()
}

// snapshot produces a progress view of the running test.
func (a *aggregator) snapshot(now time.Time) result.LoadTestProgress {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := now.Sub(a.start).Seconds()
	tps := 0.0
	if elapsed > 0 {
		tps = float64(a.total) / elapsed
	}
	return result.LoadTestProgress{
		ElapsedSeconds:     elapsed,
		CurrentTPS:         tps,
		TotalRequests:      a.total,
		SuccessfulRequests: a.successes,
		FailedRequests:     a.failures,
		ErrorRequests:      a.errors,
		ActiveRequests:     a.active,
	}
}

// finalize assembles the immutable result once all workers have drained.
func (a *aggregator) finalize(res *result.LoadTestResult, end time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	res.EndTime = end
	res.DurationSeconds = end.Sub(a.start).Seconds()
	res.TotalRequests = a.total
	res.SuccessfulRequests = a.successes
	res.FailedRequests = a.failures
	res.ErrorRequests = a.errors
	if res.DurationSeconds > 0 {
		res.ActualAvgTPS = float64(a.total) / res.DurationSeconds
	}
	if a.total > 0 {
		res.SuccessRate = float64(a.successes) / float64(a.total) * 100
	}

	res.StatusCodes = make(map[int]int, len(a.statusCodes))
	for code, count := range a.statusCodes {
		res.StatusCodes[code] = count
	}
	res.Errors = make(map[string]int, len(a.errorKinds))
	for kind, count := range a.errorKinds {
		res.Errors[kind] = count
	}

	if len(a.durations) > 0 {
		sorted := make([]float64, len(a.durations))
		copy(sorted, a.durations)
		sort.Float64s(sorted)

		total := 0.0
		for _, d := range sorted {
			total += d
		}
		res.AvgResponseTimeMs = total / float64(len(sorted))
		res.MinResponseTimeMs = sorted[0]
		res.MaxResponseTimeMs = sorted[len(sorted)-1]
		res.P50ResponseTimeMs = percentile(sorted, 50)
		res.P95ResponseTimeMs = percentile(sorted, 95)
		res.P99ResponseTimeMs = percentile(sorted, 99)
	}

	seconds := make([]int, 0, len(a.timeline))
	for second := range a.timeline {
		seconds = append(seconds, second)
	}
	sort.Ints(seconds)
	res.Timeline = make([]result.TimelineBucket, 0, len(seconds))
	for _, second := range seconds {
		b := a.timeline[second]
		bucket := result.TimelineBucket{
			Second:    second,
			Requests:  b.requests,
			Successes: b.successes,
			Failures:  b.failures,
			Errors:    b.errors,
		}
		if b.timedMs > 0 {
			bucket.AvgResponseTimeMs = b.totalMs / float64(b.timedMs)
		}
		res.Timeline = append(res.Timeline, bucket)
	}
}

// percentile computes the nearest-rank percentile of an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100.0 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
