// Package lifecycle coordinates one client-side view of an analysis
// session.
//
// A [Session] polls the service for status, folds every payload into a
// [Machine], opens a question prompt when the pipeline waits for input,
// counts down to the session's expiry once results are ready, and deletes
// the session exactly once when that countdown reaches zero. Manual
// deletion goes through the same [Deleter], whose in-flight guard keeps
// manual and automatic requests from racing.
//
// Everything the view does is reported on an [event.Bus]; front ends
// subscribe to it and never reach into the coordinator.
//
// Each timer the view owns (poll, countdown, navigate grace) lives in its
// own slot that holds at most one pending timer. Poll requests carry
// sequence numbers so a late response cannot overwrite a newer one, and a
// closed view drops every response that arrives after teardown.
//
// Lifecycle:
//
//	s := lifecycle.New(id, client, lifecycle.WithLogger(logger))
//	s.Bus().SubscribeAll(render)
//	s.Start(ctx)    // first poll goes out immediately
//	// ... events flow ...
//	s.Close()       // cancels timers and requests, waits for round-trips
package lifecycle
