// Package vtask provides a lazy, cancellable task abstraction for Go.
//
// A Task is a description of a computation, not a running computation.
// Creating a Task performs no work; the wrapped function runs only when
// one of the execution methods is called, and re-running the same Task
// value re-executes it from scratch. This makes Tasks ordinary values:
// they can be stored, passed around, composed, and run any number of
// times.
//
// # Building Tasks
//
// Tasks are created through factories and combined through combinators:
//
//	fetch := vtask.Of(func(ctx context.Context) (string, error) {
//	    return client.Get(ctx, url)
//	})
//	length := vtask.Map(fetch, func(body string) int { return len(body) })
//
// Map and FlatMap are package-level functions because Go methods cannot
// introduce new type parameters. Same-type combinators (Recover, Peek,
// Retry, Timeout, ...) are methods.
//
// # Running Tasks
//
// Run executes synchronously on the calling goroutine and returns the
// value or the failure. RunSafe returns a Try, a plain value holding
// either outcome. RunAsync starts the task on its own goroutine and
// delivers a Try on a buffered channel.
//
// # Cancellation
//
// Cancellation is cooperative and carried by the context passed to the
// execution methods. Run refuses to start a task whose context is
// already cancelled; a running computation stops only at the points
// where it observes its context. Timeouts are cancellation triggered by
// a timer, nothing more.
package vtask
