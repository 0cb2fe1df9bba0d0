package job

import (
	"context"
	"log"
	"time"

	"stocksense/internal/service"

	"go.opentelemetry.io/otel/trace"
)

type Retrainer interface {
	TrainAll(ctx context.Context) (*service.TrainSummary, error)
}

// RetrainJob retrains every model once a day at a fixed UTC hour, after
// the exchange close.
type RetrainJob struct {
	tracer    trace.Tracer
	service   Retrainer
	trainHour int
}

func NewRetrainJob(tracer trace.Tracer, svc Retrainer, trainHourUTC int) *RetrainJob {
	if trainHourUTC < 0 || trainHourUTC > 23 {
		trainHourUTC = 0
	}
	return &RetrainJob{tracer: tracer, service: svc, trainHour: trainHourUTC}
}

func (j *RetrainJob) Start(ctx context.Context) {
	if j.service == nil {
		log.Println("Retrain job disabled: no service")
		<-ctx.Done()
		return
	}
	for {
		next := nextRunUTC(time.Now().UTC(), j.trainHour)
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

func (j *RetrainJob) runOnce(ctx context.Context) {
	_, span := j.tracer.Start(ctx, "retrain-job.run-once")
	defer span.End()

	summary, err := j.service.TrainAll(ctx)
	if err != nil {
		log.Printf("Scheduled retraining error: %v", err)
		return
	}
	log.Printf("Scheduled retraining done: trained=%d failed=%d duration=%s",
		len(summary.Trained), len(summary.Failed), summary.Duration)
	for symbol, reason := range summary.Failed {
		log.Printf("Retraining failed for %s: %s", symbol, reason)
	}
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
