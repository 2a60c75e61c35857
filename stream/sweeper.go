package stream

import (
	"context"
	"sync"
	"time"

	"github.com/JCervantesB/zstory/common"
	"github.com/JCervantesB/zstory/metrics"
	"github.com/apex/log"
)

// LifecycleSweeper periodically reaps idle subscribers and heartbeats the
// rest. Heartbeating doubles as liveness detection: a transport that died
// without a close signal fails the write and is pruned within one period.
type LifecycleSweeper interface {
	// Start begin periodic sweeping. Starting an already running sweeper is
	// a no-op.
	Start() error
	// Stop cancel the periodic sweep
	Stop() error
	// SweepOnce run one tick: the idle reap pass, then the heartbeat pass
	SweepOnce(timestamp time.Time) error
}

// lifecycleSweeperImpl implements LifecycleSweeper
type lifecycleSweeperImpl struct {
	common.Component
	registry      SubscriberRegistry
	timer         common.IntervalTimer
	sweepInterval time.Duration
	idleTimeout   time.Duration
	lock          *sync.Mutex
	started       bool
}

// GetLifecycleSweeper define LifecycleSweeper
func GetLifecycleSweeper(
	rootCtxt context.Context,
	registry SubscriberRegistry,
	sweepInterval time.Duration,
	idleTimeout time.Duration,
	wg *sync.WaitGroup,
) (LifecycleSweeper, error) {
	logTags := log.Fields{
		"module": "stream", "component": "lifecycle-sweeper",
	}
	timer, err := common.GetIntervalTimerInstance("lifecycle-sweeper", rootCtxt, wg)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to define sweep timer")
		return nil, err
	}
	return &lifecycleSweeperImpl{
		Component:     common.Component{LogTags: logTags},
		registry:      registry,
		timer:         timer,
		sweepInterval: sweepInterval,
		idleTimeout:   idleTimeout,
		lock:          &sync.Mutex{},
		started:       false,
	}, nil
}

// Start begin periodic sweeping
func (s *lifecycleSweeperImpl) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.started {
		log.WithFields(s.LogTags).Debug("Already running")
		return nil
	}
	if err := s.timer.Start(s.sweepInterval, func() error {
		return s.SweepOnce(time.Now())
	}, false); err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Failed to start sweep timer")
		return err
	}
	s.started = true
	return nil
}

// Stop cancel the periodic sweep
func (s *lifecycleSweeperImpl) Stop() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	return s.timer.Stop()
}

// SweepOnce run one tick. The reap pass covers the whole registry before the
// heartbeat pass begins, so a reaped subscriber is never also heartbeated.
func (s *lifecycleSweeperImpl) SweepOnce(timestamp time.Time) error {
	s.reapIdleSubscribers(timestamp)
	s.sendHeartbeats(timestamp)
	return nil
}

// reapIdleSubscribers close and remove subscribers idle past the timeout
func (s *lifecycleSweeperImpl) reapIdleSubscribers(timestamp time.Time) {
	totalReaped := 0
	for _, storyID := range s.registry.ListStories() {
		idle := []*Subscriber{}
		for _, subscriber := range s.registry.ListSubscribers(storyID) {
			inactiveFor := timestamp.Sub(s.registry.LastActivity(subscriber))
			if inactiveFor > s.idleTimeout {
				// Best-effort close. The transport may already be gone.
				if err := subscriber.sink.Close(); err != nil {
					log.WithError(err).WithFields(s.LogTags).Debugf(
						"Connection %s of story %s already closed", subscriber.id, storyID,
					)
				}
				idle = append(idle, subscriber)
			}
		}
		if err := s.registry.RemoveSubscribers(storyID, idle, RemovalReasonIdle); err != nil {
			log.WithError(err).WithFields(s.LogTags).Errorf(
				"Failed to prune idle connections of story %s", storyID,
			)
		}
		totalReaped += len(idle)
	}
	if totalReaped > 0 {
		log.WithFields(s.LogTags).Infof("Cleaned up %d inactive connections", totalReaped)
	}
}

// sendHeartbeats write a heartbeat frame to every remaining subscriber
func (s *lifecycleSweeperImpl) sendHeartbeats(timestamp time.Time) {
	frame, err := MarshalEventFrame(defineHeartbeatEvent(timestamp))
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Unable to serialize heartbeat")
		return
	}
	for _, storyID := range s.registry.ListStories() {
		dead := []*Subscriber{}
		for _, subscriber := range s.registry.ListSubscribers(storyID) {
			if err := subscriber.sink.SendEvent(frame); err != nil {
				log.WithError(err).WithFields(s.LogTags).Debugf(
					"Connection %s of story %s failed heartbeat", subscriber.id, storyID,
				)
				dead = append(dead, subscriber)
				continue
			}
			s.registry.RefreshSubscriber(subscriber, timestamp)
			metrics.RecordFrameSent(EventTypeHeartbeat)
		}
		if err := s.registry.RemoveSubscribers(storyID, dead, RemovalReasonDead); err != nil {
			log.WithError(err).WithFields(s.LogTags).Errorf(
				"Failed to prune dead connections of story %s", storyID,
			)
		}
	}
}
