/*
Package events provides an in-memory event broker for hutch's internal
pub/sub messaging.

The reconciler and the action path publish events describing what each
pass did: reconcile.started, reconcile.applied, reconcile.waiting,
reconcile.failed, relation.state-changed, service.restarted, and
action.register. The agent loop subscribes a logging sink so a single
journal stream shows every state change the operator made.

# Event Flow

 1. Publisher calls broker.Publish(event)
 2. Event added to the main event channel (non-blocking)
 3. Broadcast loop receives the event
 4. Event sent to all subscriber channels
 5. Full subscriber buffers skip (no blocking)

# Usage

Creating and starting a broker:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Publishing:

	broker.Publish(events.New(events.TypePassApplied,
		"configuration applied",
		map[string]string{"service": "hutch-gitea"}))

Delivery is best effort. Events carry no secrets; metadata holds only
names, fingerprints, and opaque handles.
*/
package events
