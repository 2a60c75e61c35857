package stream

import (
	"context"
	"time"

	"github.com/JCervantesB/zstory/common"
	"github.com/JCervantesB/zstory/metrics"
	"github.com/JCervantesB/zstory/storage"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// SceneBroadcaster fans a freshly persisted scene out to every live
// subscriber of its story.
type SceneBroadcaster interface {
	// PublishScene deliver a new scene to all current subscribers of the
	// story. A subscriber whose write fails is pruned; its failure never
	// surfaces to the caller or blocks delivery to the rest.
	PublishScene(
		ctxt context.Context, storyID string, scene storage.GameScene, timestamp time.Time,
	) error
}

// sceneBroadcasterImpl implements SceneBroadcaster
type sceneBroadcasterImpl struct {
	common.Component
	registry SubscriberRegistry
	validate *validator.Validate
}

// GetSceneBroadcaster define SceneBroadcaster
func GetSceneBroadcaster(
	registry SubscriberRegistry, instance string,
) (SceneBroadcaster, error) {
	logTags := log.Fields{
		"module": "stream", "component": "scene-broadcaster", "instance": instance,
	}
	return &sceneBroadcasterImpl{
		Component: common.Component{LogTags: logTags},
		registry:  registry,
		validate:  validator.New(),
	}, nil
}

// PublishScene deliver a new scene to all current subscribers of the story
func (b *sceneBroadcasterImpl) PublishScene(
	ctxt context.Context, storyID string, scene storage.GameScene, timestamp time.Time,
) error {
	if err := b.validate.Struct(&scene); err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf(
			"Unable to broadcast invalid scene for story %s", storyID,
		)
		return err
	}

	subscribers := b.registry.ListSubscribers(storyID)
	if len(subscribers) == 0 {
		log.WithFields(b.LogTags).Debugf("No active connections for story %s", storyID)
		return nil
	}

	frame, err := MarshalEventFrame(defineNewSceneEvent(scene, timestamp))
	if err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf(
			"Unable to serialize scene %s for transmission", scene.ID,
		)
		return err
	}

	log.WithFields(b.LogTags).Debugf(
		"Broadcasting scene %s to %d connections for story %s",
		scene.ID,
		len(subscribers),
		storyID,
	)

	// Attempt delivery to every subscriber present at this moment. Dead ones
	// are collected and removed in one batch after the pass.
	dead := []*Subscriber{}
	for _, subscriber := range subscribers {
		if err := subscriber.sink.SendEvent(frame); err != nil {
			log.WithError(err).WithFields(b.LogTags).Debugf(
				"Connection %s of story %s failed scene write", subscriber.id, storyID,
			)
			dead = append(dead, subscriber)
			continue
		}
		b.registry.RefreshSubscriber(subscriber, timestamp)
		metrics.RecordFrameSent(EventTypeNewScene)
	}
	if err := b.registry.RemoveSubscribers(storyID, dead, RemovalReasonDead); err != nil {
		log.WithError(err).WithFields(b.LogTags).Errorf(
			"Failed to prune dead connections of story %s", storyID,
		)
	}

	metrics.RecordSceneBroadcast()
	return nil
}
