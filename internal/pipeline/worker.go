package pipeline

import (
	"context"
	"log/slog"
	"strings"
)

// Worker runs queued jobs through a Converter.
type Worker struct {
	conv *Converter
	log  *slog.Logger
}

func NewWorker(conv *Converter, log *slog.Logger) *Worker {
	return &Worker{conv: conv, log: log}
}

// Process converts one job and records the outcome on it. It never
// panics out to the worker loop.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	defer func() {
		if r := recover(); r != nil {
			log.Error("conversion panicked", "panic", r)
			job.AddError("internal error")
			job.SetStatus(StatusFailed, "panic")
		}
	}()

	phase := StatusQueued
	out, err := w.conv.Convert(ctx, Input{
		Filename:        job.Filename,
		Data:            job.FileData(),
		IncludeMetadata: job.IncludeMetadata,
		OnPhase: func(s JobStatus) {
			phase = s
			job.SetStatus(s, string(s))
			log.Info("phase", "phase", s)
		},
	})
	if err != nil {
		log.Error("conversion failed", "phase", phase, "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, string(phase))
		return
	}

	if out.Bundle != nil {
		job.SetExtracted(out.Bundle.TotalPages, len(out.Bundle.Items))
	}
	job.SetRows(len(out.Rows))
	for _, d := range out.Degraded {
		job.AddError(d)
	}
	job.SetResult(out.Filename, out.Workbook)

	if len(out.Degraded) > 0 {
		log.Warn("conversion degraded", "notes", strings.Join(out.Degraded, "; "))
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}
