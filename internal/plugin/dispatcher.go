package plugin

import (
	"context"
	"log"
	"sync"
)

// DefaultQueueSize is the number of pending jobs a Dispatcher buffers.
const DefaultQueueSize = 32

// Job is one plugin run queued on a Dispatcher.
type Job struct {
	Plugin  string
	Request *Request
}

// Dispatcher runs plugin jobs in order on a single background worker.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	jobs     chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	onResult  func(Job, *Response, error)
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	QueueSize int
	// OnResult, if set, is called on the worker after every job.
	OnResult func(Job, *Response, error)
}

// NewDispatcher starts a dispatcher worker.
func NewDispatcher(manager *Manager, executor *Executor, cfg DispatcherConfig) *Dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		manager:  manager,
		executor: executor,
		jobs:     make(chan Job, queueSize),
		ctx:      ctx,
		cancel:   cancel,
		onResult: cfg.OnResult,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Submit queues a job. It returns false and drops the job when the queue is
// full or the dispatcher is closed.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case <-d.ctx.Done():
		return false
	default:
	}

	select {
	case d.jobs <- job:
		return true
	default:
		log.Printf("Plugin queue full, dropping %s %s", job.Plugin, job.Request.Action)
		return false
	}
}

// Close stops accepting jobs, cancels the running plugin and waits for the worker.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.cancel()
		d.wg.Wait()
	})
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case job := <-d.jobs:
			resp, err := d.execute(job)
			if err != nil {
				log.Printf("Plugin %s %s for %s failed: %v", job.Plugin, job.Request.Action, job.Request.Note, err)
			} else if !resp.Success {
				log.Printf("Plugin %s reported error: %s", job.Plugin, resp.Error)
			}
			if d.onResult != nil {
				d.onResult(job, resp, err)
			}
		}
	}
}

func (d *Dispatcher) execute(job Job) (*Response, error) {
	p, err := d.manager.Get(job.Plugin)
	if err != nil {
		return nil, err
	}
	return d.executor.Execute(d.ctx, p, job.Request)
}
