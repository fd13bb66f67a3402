// Package events decouples the generation service from the task runner.
//
// The service emits a TaskRequestEvent after a session row exists; a
// Dispatcher routes it to the handler registered for its type, which turns
// it into a durable task. Neither side imports the other.
package events
