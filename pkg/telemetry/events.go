package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the StackForge system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// ResolutionID is the associated resolution ID, if applicable.
	ResolutionID string `json:"resolution_id,omitempty"`

	// NodeID is the associated decision node ID, if applicable.
	NodeID string `json:"node_id,omitempty"`

	// PlanID is the associated plan ID, if applicable.
	PlanID string `json:"plan_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeResolutionStarted   = "resolution.started"
	EventTypeResolutionCompleted = "resolution.completed"
	EventTypeResolutionFailed    = "resolution.failed"
	EventTypeNodeResolved        = "node.resolved"
	EventTypeSelectionRejected   = "selection.rejected"
	EventTypeConflictResolved    = "conflict.resolved"
	EventTypePlanGenerated       = "plan.generated"
	EventTypeConfigPersisted     = "config.persisted"
	EventTypePolicyViolation     = "policy.violation"
	EventTypeCatalogReloaded     = "catalog.reloaded"
	EventTypeError               = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishResolutionStarted publishes a resolution started event.
func (ep *EventPublisher) PublishResolutionStarted(resolutionID, projectPath string) error {
	return ep.Publish(Event{
		Type:         EventTypeResolutionStarted,
		Source:       "walker",
		ResolutionID: resolutionID,
		Message:      fmt.Sprintf("Resolution %s started for %s", resolutionID, projectPath),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"project_path": projectPath,
		},
	})
}

// PublishResolutionCompleted publishes a resolution completed event.
func (ep *EventPublisher) PublishResolutionCompleted(resolutionID string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:         EventTypeResolutionCompleted,
		Source:       "walker",
		ResolutionID: resolutionID,
		Message:      fmt.Sprintf("Resolution %s completed", resolutionID),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishResolutionFailed publishes a resolution failed event.
func (ep *EventPublisher) PublishResolutionFailed(resolutionID, reason string) error {
	return ep.Publish(Event{
		Type:         EventTypeResolutionFailed,
		Source:       "walker",
		ResolutionID: resolutionID,
		Message:      fmt.Sprintf("Resolution %s failed: %s", resolutionID, reason),
		Level:        EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishNodeResolved publishes a node resolved event.
func (ep *EventPublisher) PublishNodeResolved(resolutionID, nodeID string, selected []string) error {
	return ep.Publish(Event{
		Type:         EventTypeNodeResolved,
		Source:       "walker",
		ResolutionID: resolutionID,
		NodeID:       nodeID,
		Message:      fmt.Sprintf("Node %s resolved to %v", nodeID, selected),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"selected": selected,
		},
	})
}

// PublishSelectionRejected publishes a rejected selection event.
func (ep *EventPublisher) PublishSelectionRejected(resolutionID, nodeID, reason string) error {
	return ep.Publish(Event{
		Type:         EventTypeSelectionRejected,
		Source:       "walker",
		ResolutionID: resolutionID,
		NodeID:       nodeID,
		Message:      fmt.Sprintf("Selection for node %s rejected: %s", nodeID, reason),
		Level:        EventLevelWarning,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishConflictResolved publishes a supersession event.
func (ep *EventPublisher) PublishConflictResolved(resolutionID, origin string, excluded []string) error {
	return ep.Publish(Event{
		Type:         EventTypeConflictResolved,
		Source:       "resolver",
		ResolutionID: resolutionID,
		Message:      fmt.Sprintf("Tool %s supersedes %v", origin, excluded),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"origin":   origin,
			"excluded": excluded,
		},
	})
}

// PublishPlanGenerated publishes a plan generated event.
func (ep *EventPublisher) PublishPlanGenerated(resolutionID, planID string, operations int) error {
	return ep.Publish(Event{
		Type:         EventTypePlanGenerated,
		Source:       "planner",
		ResolutionID: resolutionID,
		PlanID:       planID,
		Message:      fmt.Sprintf("Plan %s generated with %d operations", planID, operations),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"operations": operations,
		},
	})
}

// PublishConfigPersisted publishes a config persisted event.
func (ep *EventPublisher) PublishConfigPersisted(resolutionID, path string) error {
	return ep.Publish(Event{
		Type:         EventTypeConfigPersisted,
		Source:       "persister",
		ResolutionID: resolutionID,
		Message:      fmt.Sprintf("Canonical config persisted to %s", path),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(resolutionID, policyName, reason string) error {
	return ep.Publish(Event{
		Type:         EventTypePolicyViolation,
		Source:       "policy",
		ResolutionID: resolutionID,
		Message:      fmt.Sprintf("Policy violation: %s - %s", policyName, reason),
		Level:        EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// PublishCatalogReloaded publishes a catalog reloaded event.
func (ep *EventPublisher) PublishCatalogReloaded(version string, nodes int) error {
	return ep.Publish(Event{
		Type:    EventTypeCatalogReloaded,
		Source:  "catalog",
		Message: fmt.Sprintf("Catalog %s reloaded with %d nodes", version, nodes),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"version": version,
			"nodes":   nodes,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level
// or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByResolutionID creates a filter that only allows events for a
// specific resolution.
func FilterByResolutionID(resolutionID string) EventFilter {
	return func(event Event) bool {
		return event.ResolutionID == resolutionID
	}
}
