package stream

import (
	"sync"
	"time"

	"github.com/JCervantesB/zstory/common"
	"github.com/JCervantesB/zstory/metrics"
	"github.com/apex/log"
	"github.com/google/uuid"
)

// Subscriber removal reasons, used as metrics labels
const (
	RemovalReasonDisconnect = "disconnect"
	RemovalReasonDead       = "dead"
	RemovalReasonIdle       = "idle"
	RemovalReasonAdmin      = "admin"
)

// Subscriber is one live viewer connection to one story. It is owned by the
// registry's per-story set; other components only hold it for the span of a
// single operation.
type Subscriber struct {
	id      string
	storyID string
	sink    EventSink
	// lastActivity guarded by the owning registry's lock
	lastActivity time.Time
}

// ID is the subscriber's instance ID
func (s *Subscriber) ID() string { return s.id }

// StoryID is the story this subscriber is watching
func (s *Subscriber) StoryID() string { return s.storyID }

// Sink is the subscriber's push connection
func (s *Subscriber) Sink() EventSink { return s.sink }

// SubscriberRegistry is the single source of truth for which viewers are
// listening to which story right now. Every membership mutation goes through
// it; it never performs I/O of its own.
type SubscriberRegistry interface {
	// AddSubscriber register a new viewer connection for a story
	AddSubscriber(storyID string, sink EventSink, timestamp time.Time) (*Subscriber, error)
	// RemoveSubscriber deregister the viewer owning this sink. Removing an
	// already absent sink is a no-op.
	RemoveSubscriber(storyID string, sink EventSink) error
	// RemoveAllSubscribers tear down every connection of one story
	RemoveAllSubscribers(storyID string) error
	// RemoveSubscribers batch-remove subscribers found dead or idle during
	// one broadcast or sweep pass
	RemoveSubscribers(storyID string, subscribers []*Subscriber, reason string) error
	// RefreshSubscriber record delivery activity on a subscriber
	RefreshSubscriber(subscriber *Subscriber, timestamp time.Time)
	// LastActivity read a subscriber's last delivery timestamp
	LastActivity(subscriber *Subscriber) time.Time
	// SubscriberCount number of live subscribers of a story
	SubscriberCount(storyID string) int
	// HasSubscribers whether a story has any live subscriber
	HasSubscribers(storyID string) bool
	// ListSubscribers snapshot of a story's current subscribers. Callers
	// iterate the snapshot, so removals mid-pass do not disturb iteration.
	ListSubscribers(storyID string) []*Subscriber
	// ListStories snapshot of the story IDs with live subscribers
	ListStories() []string
}

// subscriberRegistryImpl implements SubscriberRegistry
type subscriberRegistryImpl struct {
	common.Component
	lock *sync.Mutex
	// subscribers indexed story ID first. Invariant: a story key is present
	// if and only if its set is non-empty.
	subscribers map[string]map[*Subscriber]bool
}

// GetSubscriberRegistry define a new SubscriberRegistry
func GetSubscriberRegistry(instance string) (SubscriberRegistry, error) {
	logTags := log.Fields{
		"module": "stream", "component": "subscriber-registry", "instance": instance,
	}
	return &subscriberRegistryImpl{
		Component:   common.Component{LogTags: logTags},
		lock:        &sync.Mutex{},
		subscribers: make(map[string]map[*Subscriber]bool),
	}, nil
}

// AddSubscriber register a new viewer connection for a story
func (r *subscriberRegistryImpl) AddSubscriber(
	storyID string, sink EventSink, timestamp time.Time,
) (*Subscriber, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	subscriber := &Subscriber{
		id:           uuid.New().String(),
		storyID:      storyID,
		sink:         sink,
		lastActivity: timestamp,
	}
	if _, ok := r.subscribers[storyID]; !ok {
		r.subscribers[storyID] = make(map[*Subscriber]bool)
	}
	r.subscribers[storyID][subscriber] = true
	metrics.RecordSubscriberAdded()
	log.WithFields(r.LogTags).Infof(
		"Added connection for story %s. Total connections: %d",
		storyID,
		len(r.subscribers[storyID]),
	)
	return subscriber, nil
}

// RemoveSubscriber deregister the viewer owning this sink
func (r *subscriberRegistryImpl) RemoveSubscriber(storyID string, sink EventSink) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	storySubscribers, ok := r.subscribers[storyID]
	if !ok {
		return nil
	}
	for subscriber := range storySubscribers {
		if subscriber.sink == sink {
			delete(storySubscribers, subscriber)
			metrics.RecordSubscribersRemoved(1, RemovalReasonDisconnect)
			log.WithFields(r.LogTags).Infof(
				"Removed connection for story %s. Remaining: %d", storyID, len(storySubscribers),
			)
			break
		}
	}
	r.clearStoryIfEmpty(storyID)
	return nil
}

// RemoveAllSubscribers tear down every connection of one story
func (r *subscriberRegistryImpl) RemoveAllSubscribers(storyID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	storySubscribers, ok := r.subscribers[storyID]
	if !ok {
		return nil
	}
	metrics.RecordSubscribersRemoved(len(storySubscribers), RemovalReasonAdmin)
	delete(r.subscribers, storyID)
	log.WithFields(r.LogTags).Infof("Removed all connections for story %s", storyID)
	return nil
}

// RemoveSubscribers batch-remove subscribers found dead or idle
func (r *subscriberRegistryImpl) RemoveSubscribers(
	storyID string, subscribers []*Subscriber, reason string,
) error {
	if len(subscribers) == 0 {
		return nil
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	storySubscribers, ok := r.subscribers[storyID]
	if !ok {
		return nil
	}
	removed := 0
	for _, subscriber := range subscribers {
		if storySubscribers[subscriber] {
			delete(storySubscribers, subscriber)
			removed++
		}
	}
	metrics.RecordSubscribersRemoved(removed, reason)
	log.WithFields(r.LogTags).Debugf(
		"Removed %d %s connections for story %s. Remaining: %d",
		removed,
		reason,
		storyID,
		len(storySubscribers),
	)
	r.clearStoryIfEmpty(storyID)
	return nil
}

// RefreshSubscriber record delivery activity on a subscriber
func (r *subscriberRegistryImpl) RefreshSubscriber(
	subscriber *Subscriber, timestamp time.Time,
) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if timestamp.After(subscriber.lastActivity) {
		subscriber.lastActivity = timestamp
	}
}

// LastActivity read a subscriber's last delivery timestamp
func (r *subscriberRegistryImpl) LastActivity(subscriber *Subscriber) time.Time {
	r.lock.Lock()
	defer r.lock.Unlock()
	return subscriber.lastActivity
}

// SubscriberCount number of live subscribers of a story
func (r *subscriberRegistryImpl) SubscriberCount(storyID string) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.subscribers[storyID])
}

// HasSubscribers whether a story has any live subscriber
func (r *subscriberRegistryImpl) HasSubscribers(storyID string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.subscribers[storyID]) > 0
}

// ListSubscribers snapshot of a story's current subscribers
func (r *subscriberRegistryImpl) ListSubscribers(storyID string) []*Subscriber {
	r.lock.Lock()
	defer r.lock.Unlock()
	result := make([]*Subscriber, 0, len(r.subscribers[storyID]))
	for subscriber := range r.subscribers[storyID] {
		result = append(result, subscriber)
	}
	return result
}

// ListStories snapshot of the story IDs with live subscribers
func (r *subscriberRegistryImpl) ListStories() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	result := make([]string, 0, len(r.subscribers))
	for storyID := range r.subscribers {
		result = append(result, storyID)
	}
	return result
}

// clearStoryIfEmpty drops the story key once its set empties. Caller holds
// the lock.
func (r *subscriberRegistryImpl) clearStoryIfEmpty(storyID string) {
	if len(r.subscribers[storyID]) == 0 {
		delete(r.subscribers, storyID)
	}
}
