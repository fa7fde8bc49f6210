// Package event provides a pub-sub event bus for decoupled inter-component
// communication in lance.
//
// A session view publishes lifecycle events on its bus; the watch TUI and
// the plain line printer subscribe and render them. Neither side needs to
// know about the other.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [SessionEvent]: Event scoped to one session
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Status:
//   - [StatusEvent], [CompletedEvent], [FailedEvent]
//   - [ConnectivityEvent], [RecoveredEvent], [NotFoundEvent], [PollingStoppedEvent]
//
// Questions:
//   - [QuestionsPendingEvent], [QuestionsAnsweredEvent], [QuestionsFailedEvent]
//
// Artifacts and expiry:
//   - [ArtifactsReadyEvent], [CountdownTickEvent], [ExpiredEvent]
//
// Deletion and navigation:
//   - [DeletionStartedEvent], [DeletionFinishedEvent], [NavigateEvent]
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Handlers are called
// synchronously on the publishing goroutine and protected against panics.
// A handler may publish or subscribe without deadlocking.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//
//	bus.Subscribe(event.TypeCountdownTick, func(e event.Event) {
//	    tick := e.(event.CountdownTickEvent)
//	    fmt.Println(tick.Label)
//	})
//
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Debug("event", "type", e.EventType())
//	})
package event
