package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/JCervantesB/zstory/common"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// inMemoryStoryStore implements StoryStore against process memory. Used for
// tests and standalone runs without a database.
type inMemoryStoryStore struct {
	common.Component
	lock     *sync.RWMutex
	stories  map[string]GameStory
	scenes   map[string][]GameScene
	validate *validator.Validate
}

// GetInMemoryStoryStore define an in-memory StoryStore
func GetInMemoryStoryStore() (StoryStore, error) {
	logTags := log.Fields{
		"module": "storage", "component": "story-store", "backing": "memory",
	}
	return &inMemoryStoryStore{
		Component: common.Component{LogTags: logTags},
		lock:      &sync.RWMutex{},
		stories:   make(map[string]GameStory),
		scenes:    make(map[string][]GameScene),
		validate:  validator.New(),
	}, nil
}

// CreateStory persist a new story record
func (s *inMemoryStoryStore) CreateStory(ctxt context.Context, story GameStory) error {
	if err := s.validate.Struct(&story); err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Story record invalid")
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.stories[story.ID] = story
	log.WithFields(s.LogTags).Debugf("Recorded story %s", story.ID)
	return nil
}

// GetStory fetch one story record
func (s *inMemoryStoryStore) GetStory(ctxt context.Context, storyID string) (GameStory, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	story, ok := s.stories[storyID]
	if !ok {
		return GameStory{}, ErrStoryNotFound
	}
	return story, nil
}

// ListPublicStories fetch all stories marked public
func (s *inMemoryStoryStore) ListPublicStories(ctxt context.Context) ([]GameStory, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	result := []GameStory{}
	for _, story := range s.stories {
		if story.IsPublic {
			result = append(result, story)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActive.After(result[j].LastActive)
	})
	return result, nil
}

// SetStoryVisibility change a story's public flag
func (s *inMemoryStoryStore) SetStoryVisibility(
	ctxt context.Context, storyID string, public bool,
) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	story, ok := s.stories[storyID]
	if !ok {
		return ErrStoryNotFound
	}
	story.IsPublic = public
	s.stories[storyID] = story
	return nil
}

// DeleteStory remove a story and its scenes
func (s *inMemoryStoryStore) DeleteStory(ctxt context.Context, storyID string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.stories[storyID]; !ok {
		return ErrStoryNotFound
	}
	delete(s.stories, storyID)
	delete(s.scenes, storyID)
	return nil
}

// IsStoryPublic report whether a story exists and is public
func (s *inMemoryStoryStore) IsStoryPublic(
	ctxt context.Context, storyID string,
) (bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	story, ok := s.stories[storyID]
	return ok && story.IsPublic, nil
}

// CreateScene persist a new scene record, refreshing the story's LastActive
func (s *inMemoryStoryStore) CreateScene(ctxt context.Context, scene GameScene) error {
	if err := s.validate.Struct(&scene); err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Scene record invalid")
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	story, ok := s.stories[scene.StoryID]
	if !ok {
		return ErrStoryNotFound
	}
	s.scenes[scene.StoryID] = append(s.scenes[scene.StoryID], scene)
	story.LastActive = scene.CreatedAt
	s.stories[scene.StoryID] = story
	log.WithFields(s.LogTags).Debugf("Recorded scene %s of story %s", scene.ID, scene.StoryID)
	return nil
}

// ListScenes fetch a story's scenes sorted by Order
func (s *inMemoryStoryStore) ListScenes(
	ctxt context.Context, storyID string,
) ([]GameScene, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if _, ok := s.stories[storyID]; !ok {
		return nil, ErrStoryNotFound
	}
	result := make([]GameScene, len(s.scenes[storyID]))
	copy(result, s.scenes[storyID])
	sort.Slice(result, func(i, j int) bool {
		return result[i].Order < result[j].Order
	})
	return result, nil
}

// Close release the store's resources
func (s *inMemoryStoryStore) Close() error {
	return nil
}
