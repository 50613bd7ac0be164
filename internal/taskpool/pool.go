// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package taskpool implements a fork/join style executor where running tasks may submit further tasks, and the
// completion barrier is defined by an in-flight counter rather than by the state of the queue.
package taskpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/awslabs/argot-paths/internal/queue"
	"golang.org/x/sync/errgroup"
)

// AllThreads is the sentinel thread count requesting all the available hardware parallelism.
const AllThreads = -1

var (
	// ErrShutdown is returned by Batch.Execute when the pool does not accept new work anymore.
	ErrShutdown = errors.New("task pool is shut down")
	// ErrNotRunning is returned by Batch.Spawn when no task of the batch is in flight.
	ErrNotRunning = errors.New("spawn outside of a running task of the batch")
)

// Task is a unit of work. A non-nil error is collected and reported by Batch.Wait.
type Task func() error

// ResolveThreadCount returns the number of workers to use for a requested thread count. AllThreads (or any
// non-positive value) resolves to runtime.NumCPU(); explicit requests are capped at runtime.NumCPU().
func ResolveThreadCount(requested int) int {
	numCPU := runtime.NumCPU()
	if requested <= 0 || requested > numCPU {
		return numCPU
	}
	return requested
}

// Pool is a fixed set of workers consuming an unbounded FIFO queue of tasks. Work is submitted through batches
// (see NewBatch); the pool itself only tracks the total in-flight count that decides when workers may exit.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	tasks queue.Queue[job]

	// inFlight counts the tasks of all batches that have been enqueued and have not finished yet
	inFlight int
	closed   bool

	workers  errgroup.Group
	executed atomic.Int64
	size     int
}

type job struct {
	task  Task
	batch *Batch
}

// New returns a pool running numWorkers workers. numWorkers is used as is; use ResolveThreadCount to derive it
// from a user request.
func New(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	p := &Pool{size: numWorkers}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < numWorkers; i++ {
		p.workers.Go(func() error {
			p.work()
			return nil
		})
	}
	return p
}

// Size returns the number of workers of the pool.
func (p *Pool) Size() int {
	return p.size
}

// Executed returns the number of tasks that have run to completion.
func (p *Pool) Executed() int64 {
	return p.executed.Load()
}

// Shutdown stops accepting top-level work, lets the in-flight tasks run to completion and releases the workers.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return p.workers.Wait()
}

// Batch groups the tasks of one computation. Its completion barrier is an in-flight counter: a task counts from
// the moment it is submitted, so a running task that is about to spawn children keeps the batch busy. The errors
// of a batch are only reported by its own Wait.
type Batch struct {
	pool *Pool

	// inFlight, idle and errs are guarded by pool.mu
	inFlight int

	// idle is closed when inFlight drops to zero, and replaced when it becomes positive again
	idle chan struct{}
	errs []error
}

// NewBatch returns an empty batch submitting to p.
func (p *Pool) NewBatch() *Batch {
	b := &Batch{pool: p, idle: make(chan struct{})}
	close(b.idle)
	return b
}

// Execute submits top-level work. It returns ErrShutdown once the pool is shut down, even while other work is
// still running.
func (b *Batch) Execute(task Task) error {
	p := b.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrShutdown
	}
	b.push(task)
	return nil
}

// Spawn submits work on behalf of a running task of the batch. It is accepted after Shutdown, so that in-flight
// work can run to its end, and returns ErrNotRunning when nothing of the batch is in flight.
func (b *Batch) Spawn(task Task) error {
	p := b.pool
	p.mu.Lock()
	defer p.mu.Unlock()
	if b.inFlight == 0 {
		return ErrNotRunning
	}
	b.push(task)
	return nil
}

// push must be called with pool.mu held
func (b *Batch) push(task Task) {
	if b.inFlight == 0 {
		b.idle = make(chan struct{})
	}
	b.inFlight++
	b.pool.inFlight++
	b.pool.tasks.Push(job{task: task, batch: b})
	b.pool.cond.Signal()
}

// Wait blocks until no task of the batch is queued or running. If ctx is done first, it returns ctx.Err(); the
// tasks keep running and their errors stay with the batch for the next Wait. Otherwise, it returns the errors
// reported by the tasks of the batch since the last completed Wait, joined with errors.Join.
func (b *Batch) Wait(ctx context.Context) error {
	p := b.pool
	p.mu.Lock()
	idle := b.idle
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-idle:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	errs := b.errs
	b.errs = nil
	return errors.Join(errs...)
}

func (p *Pool) work() {
	for {
		p.mu.Lock()
		for p.tasks.Empty() && !(p.closed && p.inFlight == 0) {
			p.cond.Wait()
		}
		if p.tasks.Empty() {
			// closed and nothing in flight
			p.mu.Unlock()
			return
		}
		j := p.tasks.Pop()
		p.mu.Unlock()

		err := run(j.task)
		p.executed.Add(1)

		p.mu.Lock()
		b := j.batch
		if err != nil {
			b.errs = append(b.errs, err)
		}
		b.inFlight--
		if b.inFlight == 0 {
			close(b.idle)
		}
		p.inFlight--
		if p.inFlight == 0 {
			// wake up the workers waiting for the end of the work after a shutdown
			p.cond.Broadcast()
		}
		p.mu.Unlock()
	}
}

func run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("task panicked: %w", e)
			} else {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}
	}()
	return task()
}
