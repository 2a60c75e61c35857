package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLifecycleSweeperIdleReap(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry, err := GetSubscriberRegistry("unit-test")
	assert.Nil(err)

	utCtxt, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}
	defer wg.Wait()

	idleTimeout := time.Minute * 5
	uut, err := GetLifecycleSweeper(utCtxt, registry, time.Minute, idleTimeout, &wg)
	assert.Nil(err)

	storyID := uuid.New().String()
	startTime := time.Now()

	freshSink := &mockEventSink{}
	staleSink := &mockEventSink{}
	_, err = registry.AddSubscriber(storyID, freshSink, startTime)
	assert.Nil(err)
	staleSub, err := registry.AddSubscriber(storyID, staleSink, startTime.Add(-idleTimeout*2))
	assert.Nil(err)

	// Case 0: sweep reaps only the stale subscriber
	{
		assert.Nil(uut.SweepOnce(startTime))
		assert.Equal(1, registry.SubscriberCount(storyID))
		assert.Equal(1, staleSink.closeCount())
		assert.Equal(0, staleSink.frameCount())
		assert.Equal(0, freshSink.closeCount())
	}

	// Case 1: the survivor got a heartbeat and its activity was refreshed
	{
		assert.Equal(1, freshSink.frameCount())
		var event HeartbeatEvent
		parseEventFrame(t, freshSink.frames[0], &event)
		assert.Equal(EventTypeHeartbeat, event.Type)
		for _, sub := range registry.ListSubscribers(storyID) {
			assert.NotEqual(staleSub.ID(), sub.ID())
			assert.Equal(startTime, registry.LastActivity(sub))
		}
	}

	// Case 2: a subscriber exactly at the timeout is kept
	{
		edgeSink := &mockEventSink{}
		_, err := registry.AddSubscriber(storyID, edgeSink, startTime.Add(-idleTimeout))
		assert.Nil(err)
		assert.Nil(uut.SweepOnce(startTime))
		assert.Equal(2, registry.SubscriberCount(storyID))
		assert.Equal(1, edgeSink.frameCount())
	}
}

func TestLifecycleSweeperHeartbeatKeepsConnectionsAlive(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry, err := GetSubscriberRegistry("unit-test")
	assert.Nil(err)

	utCtxt, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}
	defer wg.Wait()

	idleTimeout := time.Minute * 5
	uut, err := GetLifecycleSweeper(utCtxt, registry, time.Minute, idleTimeout, &wg)
	assert.Nil(err)

	storyID := uuid.New().String()
	startTime := time.Now()

	sink := &mockEventSink{}
	_, err = registry.AddSubscriber(storyID, sink, startTime)
	assert.Nil(err)

	// Repeated sweeps each refresh the subscriber, so it never goes idle even
	// past the original timeout horizon.
	sweepTime := startTime
	for itr := 0; itr < 10; itr++ {
		sweepTime = sweepTime.Add(time.Minute)
		assert.Nil(uut.SweepOnce(sweepTime))
	}
	assert.Equal(1, registry.SubscriberCount(storyID))
	assert.Equal(10, sink.frameCount())
	assert.Equal(0, sink.closeCount())
}

func TestLifecycleSweeperDeadConnectionDetection(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry, err := GetSubscriberRegistry("unit-test")
	assert.Nil(err)

	utCtxt, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}
	defer wg.Wait()

	uut, err := GetLifecycleSweeper(utCtxt, registry, time.Minute, time.Minute*5, &wg)
	assert.Nil(err)

	startTime := time.Now()
	story1 := uuid.New().String()
	story2 := uuid.New().String()

	healthy := &mockEventSink{}
	broken := &mockEventSink{sendErr: fmt.Errorf("pipe closed")}
	_, err = registry.AddSubscriber(story1, healthy, startTime)
	assert.Nil(err)
	_, err = registry.AddSubscriber(story1, broken, startTime)
	assert.Nil(err)
	_, err = registry.AddSubscriber(story2, &mockEventSink{}, startTime)
	assert.Nil(err)

	// Case 0: the broken subscriber fails its heartbeat and is pruned
	{
		assert.Nil(uut.SweepOnce(startTime.Add(time.Minute)))
		assert.Equal(1, registry.SubscriberCount(story1))
		assert.Equal(1, registry.SubscriberCount(story2))
		assert.Equal(1, healthy.frameCount())
	}

	// Case 1: once every subscriber of a story is gone the entry is cleared
	{
		broken2 := &mockEventSink{sendErr: fmt.Errorf("pipe closed")}
		assert.Nil(registry.RemoveAllSubscribers(story1))
		assert.Nil(registry.RemoveAllSubscribers(story2))
		_, err := registry.AddSubscriber(story1, broken2, startTime)
		assert.Nil(err)
		assert.Nil(uut.SweepOnce(startTime.Add(time.Minute)))
		assert.False(registry.HasSubscribers(story1))
		assert.Empty(registry.ListStories())
	}
}

func TestLifecycleSweeperLifecycle(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	registry, err := GetSubscriberRegistry("unit-test")
	assert.Nil(err)

	utCtxt, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := sync.WaitGroup{}
	defer wg.Wait()

	sweepInterval := time.Millisecond * 100
	uut, err := GetLifecycleSweeper(utCtxt, registry, sweepInterval, time.Minute, &wg)
	assert.Nil(err)

	storyID := uuid.New().String()
	sink := &mockEventSink{}
	_, err = registry.AddSubscriber(storyID, sink, time.Now())
	assert.Nil(err)

	// Case 0: start is idempotent
	{
		assert.Nil(uut.Start())
		assert.Nil(uut.Start())
	}

	// Case 1: the timer drives heartbeats
	{
		time.Sleep(sweepInterval * 3)
		assert.Greater(sink.frameCount(), 0)
	}

	// Case 2: stop halts sweeping, and is idempotent
	{
		assert.Nil(uut.Stop())
		assert.Nil(uut.Stop())
		time.Sleep(sweepInterval * 2)
		countAfterStop := sink.frameCount()
		time.Sleep(sweepInterval * 2)
		assert.Equal(countAfterStop, sink.frameCount())
	}
}
