package observability

import (
	"context"
	"time"

	"github.com/arandu-labs/arandu/internal/logfields"
)

// LogStep wraps a unit of pipeline work with start/end/error events.
//
// On entry it emits "<step>_start". On return it emits either "<step>_end"
// with status=success and the measured duration, or "<step>_error" with the
// error string and duration. The exit event is emitted on every path,
// including panics, so per-step timing in the logs is always complete.
func LogStep(ctx context.Context, step string, fn func(context.Context) error) error {
	stepCtx := WithStep(ctx, step)
	InfoContext(stepCtx, step+" started", logfields.Event(step+"_start"))

	start := time.Now()
	var err error
	defer func() {
		durationMS := float64(time.Since(start).Milliseconds())
		if r := recover(); r != nil {
			ErrorContext(stepCtx, step+" panicked",
				logfields.Event(step+"_error"),
				logfields.DurationMS(durationMS),
				logfields.Status("error"))
			panic(r)
		}
		if err != nil {
			ErrorContext(stepCtx, step+" failed",
				logfields.Event(step+"_error"),
				logfields.DurationMS(durationMS),
				logfields.Status("error"),
				logfields.Error(err))
			return
		}
		InfoContext(stepCtx, step+" completed",
			logfields.Event(step+"_end"),
			logfields.DurationMS(durationMS),
			logfields.Status("success"))
	}()

	err = fn(stepCtx)
	return err
}
