// Package future implements the single-threaded, cooperative promise
// primitive used pervasively across the factory controller (spec §4.2).
// Promises may be resolved from any goroutine (storage adapters and
// process strategies run concurrently within a cycle), but every
// continuation is dispatched onto one Loop per Factory, so continuations
// themselves never race each other and never run inline during resolution.
package future

// Loop is a single-goroutine task executor. All promise continuations
// created against promises sharing a Loop are serialized through it,
// mirroring the cooperative single-threaded model in spec §5.
type Loop struct {
	tasks chan func()
}

// NewLoop starts a Loop's dispatch goroutine. Call Close when the owning
// component (typically *factory.Factory) shuts down.
func NewLoop() *Loop {
	l := &Loop{tasks: make(chan func(), 256)}
	go l.run()
	return l
}

func (l *Loop) run() {
	for fn := range l.tasks {
		fn()
	}
}

// Post schedules fn to run on the loop goroutine. Post never blocks the
// caller waiting for fn to run.
func (l *Loop) Post(fn func()) {
	l.tasks <- fn
}

// Close stops accepting new tasks at once; tasks already queued still run
// on the loop goroutine before it exits. Posting to a closed Loop panics, matching the "alive witness"
// discipline: callers must check liveness (see Promise's alive pointer)
// before posting once a Factory is tearing down.
func (l *Loop) Close() {
	close(l.tasks)
}
