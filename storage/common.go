package storage

import (
	"context"
	"errors"
	"time"
)

// ErrStoryNotFound returned when an operation references an unknown story
var ErrStoryNotFound = errors.New("story not found")

// ErrSceneNotFound returned when an operation references an unknown scene
var ErrSceneNotFound = errors.New("scene not found")

// GameStory is one user's story record
type GameStory struct {
	// ID is the story ID
	ID string `json:"id" validate:"required"`
	// UserID is the owning user
	UserID string `json:"userId" validate:"required"`
	// Title is the user facing story title
	Title string `json:"title"`
	// CreatedAt is when the story was created
	CreatedAt time.Time `json:"createdAt"`
	// LastActive is when the story last gained a scene
	LastActive time.Time `json:"lastActive"`
	// IsCompleted marks a finished story
	IsCompleted bool `json:"isCompleted"`
	// IsPublic marks a story readable by anonymous viewers
	IsPublic bool `json:"isPublic"`
}

// GameScene is one narrative scene within a story
type GameScene struct {
	// ID is the scene ID
	ID string `json:"id" validate:"required"`
	// StoryID is the story this scene belongs to
	StoryID string `json:"sessionId" validate:"required"`
	// Order is the scene's position within the story
	Order int `json:"order" validate:"gte=0"`
	// NarrativeText is the scene's narrative text
	NarrativeText string `json:"narrativeText" validate:"required"`
	// ImageURL points at the scene's generated image
	ImageURL string `json:"imageUrl" validate:"omitempty,uri"`
	// CreatedAt is when the scene was persisted
	CreatedAt time.Time `json:"createdAt"`
}

// StoryStore record store for stories and their scenes
type StoryStore interface {
	// CreateStory persist a new story record
	CreateStory(ctxt context.Context, story GameStory) error
	// GetStory fetch one story record
	GetStory(ctxt context.Context, storyID string) (GameStory, error)
	// ListPublicStories fetch all stories marked public
	ListPublicStories(ctxt context.Context) ([]GameStory, error)
	// SetStoryVisibility change a story's public flag
	SetStoryVisibility(ctxt context.Context, storyID string, public bool) error
	// DeleteStory remove a story and its scenes
	DeleteStory(ctxt context.Context, storyID string) error
	// IsStoryPublic report whether a story exists and is public
	IsStoryPublic(ctxt context.Context, storyID string) (bool, error)
	// CreateScene persist a new scene record, refreshing the story's LastActive
	CreateScene(ctxt context.Context, scene GameScene) error
	// ListScenes fetch a story's scenes sorted by Order
	ListScenes(ctxt context.Context, storyID string) ([]GameScene, error)
	// Close release the store's resources
	Close() error
}
