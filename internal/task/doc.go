// Package task manages background job queuing, processing, and lifecycle.
// It runs long generation sessions outside the HTTP request that started
// them, persists every task so it can be resumed after a restart, and
// supports cancelling a task by its domain key.
package task
