package outbox

import "context"

type Runner struct {
	processor *Processor
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor}
}

func (r *Runner) Start(ctx context.Context) {
	go r.processor.Run(ctx)
}
