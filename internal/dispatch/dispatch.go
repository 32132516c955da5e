// Package dispatch provides bounded worker queues for running jobs on
// a fixed number of goroutines. A single queue serializes everything on
// one worker; a partitioned queue routes each job to a worker chosen by
// hashing its partition key, so jobs sharing a key are handled in
// submission order while distinct keys spread across workers.
package dispatch

import (
	"context"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Partitionable is implemented by jobs that carry a routing key.
type Partitionable interface {
	PartitionKey() string
}

// Dispatcher routes jobs to worker channels. Workers stop when the
// construction context is cancelled; jobs still queued at that point
// are dropped.
type Dispatcher[T any] interface {
	ChannelOf(job T) chan<- T
}

type singleQueue[T any] struct {
	jobCh chan T
}

func (q singleQueue[T]) ChannelOf(_ T) chan<- T {
	return q.jobCh
}

// NewSingleQueue starts one worker goroutine that handles every
// submitted job in order. It returns once the worker is accepting jobs.
func NewSingleQueue[T any](
	ctx context.Context,
	bufferSize int,
	handle func(context.Context, T),
) Dispatcher[T] {
	jobCh := make(chan T, bufferSize)
	ready := make(chan struct{})

	go func(ch chan T) {
		close(ready)
		for {
			select {
			case job := <-ch:
				handle(ctx, job)
			case <-ctx.Done():
				return
			}
		}
	}(jobCh)

	<-ready

	return singleQueue[T]{jobCh: jobCh}
}

type partitionedQueue[T Partitionable] struct {
	jobChs []chan T
}

func (pq partitionedQueue[T]) ChannelOf(job T) chan<- T {
	return pq.jobChs[indexFor(job.PartitionKey(), len(pq.jobChs))]
}

// NewPartitionedQueue starts numWorkers goroutines, each owning one
// queue. Jobs are routed by hashing their partition key, so two jobs
// with the same key never run concurrently.
func NewPartitionedQueue[T Partitionable](
	ctx context.Context,
	numWorkers, bufferSize int,
	handle func(context.Context, T),
) Dispatcher[T] {
	if numWorkers < 1 {
		panic("dispatch: numWorkers must be positive")
	}

	jobChs := make([]chan T, numWorkers)
	ready := sync.WaitGroup{}
	for i := 0; i < numWorkers; i++ {
		ready.Add(1)
		ch := make(chan T, bufferSize)
		go func(ch chan T) {
			ready.Done()
			for {
				select {
				case job := <-ch:
					handle(ctx, job)
				case <-ctx.Done():
					return
				}
			}
		}(ch)
		jobChs[i] = ch
	}
	ready.Wait()

	return partitionedQueue[T]{jobChs: jobChs}
}

func indexFor(key string, numChs int) int {
	switch numChs {
	case 0:
		panic("dispatch: number of channels cannot be 0")
	case 1:
		return 0
	default:
		return int(xxhash.Sum64String(key) % uint64(numChs))
	}
}
