package pipeline

import (
	"slices"

	"go.uber.org/zap"
)

// Progress receives run progress. Calls are fire-and-forget and must not
// block the run.
type Progress interface {
	Stage(state State)
	Message(msg string)
	Fraction(f float64)
}

// NopProgress discards progress.
type NopProgress struct{}

func (NopProgress) Stage(State)      {}
func (NopProgress) Message(string)   {}
func (NopProgress) Fraction(float64) {}

// LogProgress writes progress to the global zap logger.
type LogProgress struct {
	Fields []zap.Field
}

func (p LogProgress) Stage(state State) {
	zap.L().Debug("pipeline: stage", append(slices.Clip(p.Fields), zap.String("stage", string(state)))...)
}

func (p LogProgress) Message(msg string) {
	zap.L().Info(msg, p.Fields...)
}

func (p LogProgress) Fraction(f float64) {
	zap.L().Debug("pipeline: progress", append(slices.Clip(p.Fields), zap.Float64("fraction", f))...)
}
