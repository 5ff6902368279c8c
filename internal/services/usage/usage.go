// Package usage appends one record per completed chat request to a JSON
// lines log.
package usage

import (
	"io"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/anything-ai/anything-ai/internal/models"
	"github.com/anything-ai/anything-ai/pkg/logger"
	"github.com/sirupsen/logrus"
)

// TokenMetrics receives token totals
type TokenMetrics interface {
	RecordTokens(model string, input, output int)
}

// Recorder writes usage records. It is safe for concurrent use.
type Recorder struct {
	log     *logrus.Logger
	out     io.Writer
	metrics TokenMetrics
}

// NewRecorder opens the rotating usage log at cfg.Path
func NewRecorder(cfg *config.UsageConfig, metrics TokenMetrics) (*Recorder, error) {
	out, err := logger.RotatingFile(config.FileConfig{
		Path:       cfg.Path,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     90,
	})
	if err != nil {
		return nil, err
	}
	return NewRecorderWriter(out, metrics), nil
}

// NewRecorderWriter writes records to w
func NewRecorderWriter(w io.Writer, metrics TokenMetrics) *Recorder {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(logger.JSONFormatter())
	log.SetLevel(logrus.InfoLevel)

	return &Recorder{log: log, out: w, metrics: metrics}
}

// Record appends rec to the log
func (r *Recorder) Record(rec models.UsageRecord) {
	if rec.TotalTokens == 0 {
		rec.TotalTokens = rec.InputTokens + rec.OutputTokens
	}

	r.log.WithTime(rec.Timestamp).WithFields(logrus.Fields{
		"model":        rec.Model,
		"inputTokens":  rec.InputTokens,
		"outputTokens": rec.OutputTokens,
		"totalTokens":  rec.TotalTokens,
		"durationMs":   rec.DurationMs,
	}).Info("usage")

	if r.metrics != nil {
		r.metrics.RecordTokens(rec.Model, rec.InputTokens, rec.OutputTokens)
	}
}

// Close closes the underlying file, if any
func (r *Recorder) Close() error {
	if closer, ok := r.out.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
