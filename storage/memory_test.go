package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryStoryRecords(t *testing.T) {
	assert := assert.New(t)

	uut, err := GetInMemoryStoryStore()
	assert.Nil(err)
	defer func() { assert.Nil(uut.Close()) }()

	utCtxt := context.Background()
	now := time.Now().UTC()

	story := GameStory{
		ID:         uuid.New().String(),
		UserID:     uuid.New().String(),
		Title:      "The Long Night",
		CreatedAt:  now,
		LastActive: now,
	}

	// Case 0: unknown story
	{
		_, err := uut.GetStory(utCtxt, story.ID)
		assert.True(errors.Is(err, ErrStoryNotFound))
		public, err := uut.IsStoryPublic(utCtxt, story.ID)
		assert.Nil(err)
		assert.False(public)
	}

	// Case 1: record a story
	{
		assert.Nil(uut.CreateStory(utCtxt, story))
		read, err := uut.GetStory(utCtxt, story.ID)
		assert.Nil(err)
		assert.Equal(story.Title, read.Title)
	}

	// Case 2: private stories stay out of the public listing
	{
		public, err := uut.IsStoryPublic(utCtxt, story.ID)
		assert.Nil(err)
		assert.False(public)
		listed, err := uut.ListPublicStories(utCtxt)
		assert.Nil(err)
		assert.Empty(listed)
	}

	// Case 3: toggle visibility
	{
		assert.Nil(uut.SetStoryVisibility(utCtxt, story.ID, true))
		public, err := uut.IsStoryPublic(utCtxt, story.ID)
		assert.Nil(err)
		assert.True(public)
		listed, err := uut.ListPublicStories(utCtxt)
		assert.Nil(err)
		assert.Len(listed, 1)
	}

	// Case 4: visibility of unknown story
	{
		assert.True(errors.Is(
			uut.SetStoryVisibility(utCtxt, uuid.New().String(), true), ErrStoryNotFound,
		))
	}
}

func TestInMemorySceneRecords(t *testing.T) {
	assert := assert.New(t)

	uut, err := GetInMemoryStoryStore()
	assert.Nil(err)

	utCtxt := context.Background()
	now := time.Now().UTC()

	story := GameStory{
		ID: uuid.New().String(), UserID: uuid.New().String(), CreatedAt: now, LastActive: now,
	}
	assert.Nil(uut.CreateStory(utCtxt, story))

	// Case 0: scene for an unknown story
	{
		scene := GameScene{
			ID:            uuid.New().String(),
			StoryID:       uuid.New().String(),
			Order:         1,
			NarrativeText: "a dead end",
			CreatedAt:     now,
		}
		assert.True(errors.Is(uut.CreateScene(utCtxt, scene), ErrStoryNotFound))
	}

	// Case 1: scenes come back sorted by order
	{
		for _, order := range []int{3, 1, 2} {
			scene := GameScene{
				ID:            uuid.New().String(),
				StoryID:       story.ID,
				Order:         order,
				NarrativeText: "the street lights flicker",
				ImageURL:      "https://cdn.example.com/scene.png",
				CreatedAt:     now.Add(time.Duration(order) * time.Minute),
			}
			assert.Nil(uut.CreateScene(utCtxt, scene))
		}
		scenes, err := uut.ListScenes(utCtxt, story.ID)
		assert.Nil(err)
		assert.Len(scenes, 3)
		for idx, scene := range scenes {
			assert.Equal(idx+1, scene.Order)
		}
	}

	// Case 2: scene creation refreshes the story's LastActive
	{
		read, err := uut.GetStory(utCtxt, story.ID)
		assert.Nil(err)
		assert.True(read.LastActive.After(now))
	}

	// Case 3: deleting the story drops its scenes
	{
		assert.Nil(uut.DeleteStory(utCtxt, story.ID))
		_, err := uut.ListScenes(utCtxt, story.ID)
		assert.True(errors.Is(err, ErrStoryNotFound))
	}
}
