package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/JCervantesB/zstory/common"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"

	// Postgres driver registers itself with database/sql as "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// storySchema matches the original application's tables, so an existing
// database keeps working unchanged.
const storySchema = `
CREATE TABLE IF NOT EXISTS game_sessions (
	"id" TEXT PRIMARY KEY NOT NULL,
	"userId" TEXT NOT NULL,
	"title" TEXT,
	"createdAt" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"lastActive" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	"isCompleted" BOOLEAN NOT NULL DEFAULT FALSE,
	"isPublic" BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS game_scenes (
	"id" TEXT PRIMARY KEY NOT NULL,
	"sessionId" TEXT NOT NULL REFERENCES game_sessions ("id") ON DELETE CASCADE,
	"order" INTEGER NOT NULL,
	"narrativeText" TEXT NOT NULL,
	"imageUrl" TEXT NOT NULL,
	"createdAt" TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// postgresStoryStore implements StoryStore against Postgres
type postgresStoryStore struct {
	common.Component
	db       *sql.DB
	validate *validator.Validate
}

// GetPostgresStoryStore define a Postgres backed StoryStore
func GetPostgresStoryStore(ctxt context.Context, dsn string) (StoryStore, error) {
	logTags := log.Fields{
		"module": "storage", "component": "story-store", "backing": "postgres",
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to open database")
		return nil, err
	}
	if err := db.PingContext(ctxt); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to reach database")
		return nil, err
	}
	if _, err := db.ExecContext(ctxt, storySchema); err != nil {
		log.WithError(err).WithFields(logTags).Error("Unable to apply schema")
		return nil, err
	}
	return &postgresStoryStore{
		Component: common.Component{LogTags: logTags},
		db:        db,
		validate:  validator.New(),
	}, nil
}

// CreateStory persist a new story record
func (s *postgresStoryStore) CreateStory(ctxt context.Context, story GameStory) error {
	if err := s.validate.Struct(&story); err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Story record invalid")
		return err
	}
	_, err := s.db.ExecContext(
		ctxt,
		`INSERT INTO game_sessions
			("id", "userId", "title", "createdAt", "lastActive", "isCompleted", "isPublic")
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		story.ID,
		story.UserID,
		story.Title,
		story.CreatedAt,
		story.LastActive,
		story.IsCompleted,
		story.IsPublic,
	)
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Failed to record story %s", story.ID)
		return err
	}
	return nil
}

// GetStory fetch one story record
func (s *postgresStoryStore) GetStory(ctxt context.Context, storyID string) (GameStory, error) {
	row := s.db.QueryRowContext(
		ctxt,
		`SELECT "id", "userId", "title", "createdAt", "lastActive", "isCompleted", "isPublic"
			FROM game_sessions WHERE "id" = $1`,
		storyID,
	)
	var story GameStory
	var title sql.NullString
	err := row.Scan(
		&story.ID,
		&story.UserID,
		&title,
		&story.CreatedAt,
		&story.LastActive,
		&story.IsCompleted,
		&story.IsPublic,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return GameStory{}, ErrStoryNotFound
	}
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Failed to fetch story %s", storyID)
		return GameStory{}, err
	}
	story.Title = title.String
	return story, nil
}

// ListPublicStories fetch all stories marked public
func (s *postgresStoryStore) ListPublicStories(ctxt context.Context) ([]GameStory, error) {
	rows, err := s.db.QueryContext(
		ctxt,
		`SELECT "id", "userId", "title", "createdAt", "lastActive", "isCompleted", "isPublic"
			FROM game_sessions WHERE "isPublic" ORDER BY "lastActive" DESC`,
	)
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Failed to fetch public stories")
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	result := []GameStory{}
	for rows.Next() {
		var story GameStory
		var title sql.NullString
		if err := rows.Scan(
			&story.ID,
			&story.UserID,
			&title,
			&story.CreatedAt,
			&story.LastActive,
			&story.IsCompleted,
			&story.IsPublic,
		); err != nil {
			log.WithError(err).WithFields(s.LogTags).Error("Failed to parse story record")
			return nil, err
		}
		story.Title = title.String
		result = append(result, story)
	}
	return result, rows.Err()
}

// SetStoryVisibility change a story's public flag
func (s *postgresStoryStore) SetStoryVisibility(
	ctxt context.Context, storyID string, public bool,
) error {
	result, err := s.db.ExecContext(
		ctxt, `UPDATE game_sessions SET "isPublic" = $1 WHERE "id" = $2`, public, storyID,
	)
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Failed to update story %s", storyID)
		return err
	}
	changed, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if changed == 0 {
		return ErrStoryNotFound
	}
	return nil
}

// DeleteStory remove a story and its scenes
func (s *postgresStoryStore) DeleteStory(ctxt context.Context, storyID string) error {
	result, err := s.db.ExecContext(
		ctxt, `DELETE FROM game_sessions WHERE "id" = $1`, storyID,
	)
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Failed to delete story %s", storyID)
		return err
	}
	changed, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if changed == 0 {
		return ErrStoryNotFound
	}
	return nil
}

// IsStoryPublic report whether a story exists and is public
func (s *postgresStoryStore) IsStoryPublic(
	ctxt context.Context, storyID string,
) (bool, error) {
	row := s.db.QueryRowContext(
		ctxt, `SELECT "isPublic" FROM game_sessions WHERE "id" = $1`, storyID,
	)
	var public bool
	err := row.Scan(&public)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Failed to fetch story %s", storyID)
		return false, err
	}
	return public, nil
}

// CreateScene persist a new scene record, refreshing the story's LastActive
func (s *postgresStoryStore) CreateScene(ctxt context.Context, scene GameScene) error {
	if err := s.validate.Struct(&scene); err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Scene record invalid")
		return err
	}
	tx, err := s.db.BeginTx(ctxt, nil)
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Failed to open transaction")
		return err
	}
	defer func() { _ = tx.Rollback() }()
	result, err := tx.ExecContext(
		ctxt,
		`INSERT INTO game_scenes
			("id", "sessionId", "order", "narrativeText", "imageUrl", "createdAt")
			SELECT $1, $2, $3, $4, $5, $6
			WHERE EXISTS (SELECT 1 FROM game_sessions WHERE "id" = $2)`,
		scene.ID,
		scene.StoryID,
		scene.Order,
		scene.NarrativeText,
		scene.ImageURL,
		scene.CreatedAt,
	)
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Failed to record scene %s", scene.ID)
		return err
	}
	changed, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if changed == 0 {
		return ErrStoryNotFound
	}
	if _, err := tx.ExecContext(
		ctxt, `UPDATE game_sessions SET "lastActive" = $1 WHERE "id" = $2`,
		scene.CreatedAt, scene.StoryID,
	); err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf(
			"Failed to refresh story %s activity", scene.StoryID,
		)
		return err
	}
	return tx.Commit()
}

// ListScenes fetch a story's scenes sorted by Order
func (s *postgresStoryStore) ListScenes(
	ctxt context.Context, storyID string,
) ([]GameScene, error) {
	if _, err := s.GetStory(ctxt, storyID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(
		ctxt,
		`SELECT "id", "sessionId", "order", "narrativeText", "imageUrl", "createdAt"
			FROM game_scenes WHERE "sessionId" = $1 ORDER BY "order"`,
		storyID,
	)
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf(
			"Failed to fetch scenes of story %s", storyID,
		)
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	result := []GameScene{}
	for rows.Next() {
		var scene GameScene
		if err := rows.Scan(
			&scene.ID,
			&scene.StoryID,
			&scene.Order,
			&scene.NarrativeText,
			&scene.ImageURL,
			&scene.CreatedAt,
		); err != nil {
			log.WithError(err).WithFields(s.LogTags).Error("Failed to parse scene record")
			return nil, err
		}
		result = append(result, scene)
	}
	return result, rows.Err()
}

// Close release the store's resources
func (s *postgresStoryStore) Close() error {
	return s.db.Close()
}
