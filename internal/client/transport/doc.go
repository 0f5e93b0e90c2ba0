// Package transport runs file uploads on a long-lived session detached from
// the caller: tasks are created, resumed and then report progress, response
// body and completion through a Delegate.
//
// A Session has an identifier that the caller persists, bounds the number of
// concurrently running tasks and can cancel tasks individually or all at
// once. Delegates are resolved per task when events fire, so a task never
// holds on to a delegate that its owner already retired.
package transport
