// Package fanout runs several streaming prompts at once.
//
// A [Coordinator] gives every prompt its own goroutine inside an errgroup and
// forwards fragments to an [Observer] as they arrive. RunAll returns once
// every task has completed or failed. Task indices follow input order no matter
// which task finishes first. By default a failure stays local to its task;
// FailFast cancels the siblings instead.
package fanout
