package scheduler

import (
	"fmt"
	"io"
)

// Reporter 接收每一代的进度，实现不能阻塞优化循环
type Reporter interface {
	Report(fitness float64, generation int)
}

type ReporterFunc func(fitness float64, generation int)

func (f ReporterFunc) Report(fitness float64, generation int) {
	f(fitness, generation)
}

type nopReporter struct{}

func (nopReporter) Report(float64, int) {}

// ConsoleReporter 在同一行上刷新进度
type ConsoleReporter struct {
	w io.Writer
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) Report(fitness float64, generation int) {
	fmt.Fprintf(r.w, "Fitness: %f\tGeneration: %d\r", fitness, generation)
}

// MultiReporter 把进度依次交给多个 Reporter
func MultiReporter(reporters ...Reporter) Reporter {
	return ReporterFunc(func(fitness float64, generation int) {
		for _, r := range reporters {
			r.Report(fitness, generation)
		}
	})
}
