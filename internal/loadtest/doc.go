/*
Package loadtest provides rate-controlled load generation against a scenario.

# Scheduling

The run is divided into 100ms ticks. For each tick the engine computes the
instantaneous target rate from the configured distribution:

  - constant: always target_tps, ramp-up is ignored
  - linear: target_tps * (elapsed / ramp_up) during ramp-up
  - exponential: target_tps * (elapsed / ramp_up)^2 during ramp-up

The number of requests dispatched per tick is the integer part of the
accumulated rate*tick budget; the fractional remainder carries into the next
tick so rounding never causes systematic under-dispatch.

# Concurrency

Dispatched requests acquire a slot from a weighted semaphore sized to
max_concurrent. The tick loop itself never blocks: a request that cannot get
a slot immediately waits out a short grace window on its own goroutine, and
is recorded as a "concurrency limit" failure if the window expires. Each
execution works on its own variable copy; the aggregator is the only shared
mutable state and is mutex-protected.

# Metrics

Workers report every completion (success, assertion failure, or transport
error) into the aggregator: classification counters, a status-code histogram,
an error-kind histogram, raw response times for end-of-run percentiles
(nearest-rank over the full sorted sample set), and a per-second timeline.
Timeline buckets are keyed by the second in which a request completed, so a
request issued in second 3 that finishes in second 4 is credited to second 4.
A bucket is sealed once the clock crosses into the next second.

# Termination

Dispatch stops when the configured duration elapses. In-flight requests are
awaited before the result is assembled; none are abandoned or double-counted.
*/
package loadtest
