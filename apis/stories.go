// Copyright 2026 The zstory Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package apis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JCervantesB/zstory/auth"
	"github.com/JCervantesB/zstory/common"
	"github.com/JCervantesB/zstory/storage"
	"github.com/JCervantesB/zstory/stream"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// APIRestStoryManagementHandler REST handler for story and scene records
type APIRestStoryManagementHandler struct {
	goutils.RestAPIHandler
	stories     storage.StoryStore
	sessions    auth.SessionReader
	broadcaster stream.SceneBroadcaster
	validate    *validator.Validate
}

// GetAPIRestStoryManagementHandler define APIRestStoryManagementHandler
func GetAPIRestStoryManagementHandler(
	httpConfig *common.HTTPConfig,
	stories storage.StoryStore,
	sessions auth.SessionReader,
	broadcaster stream.SceneBroadcaster,
) (APIRestStoryManagementHandler, error) {
	logTags := log.Fields{
		"module":    "rest",
		"component": "story-management",
	}
	return APIRestStoryManagementHandler{
		RestAPIHandler: defineRestAPIHandler(logTags, httpConfig),
		stories:        stories,
		sessions:       sessions,
		broadcaster:    broadcaster,
		validate:       validator.New(),
	}, nil
}

// requireSession resolve the caller, or describe the rejection
func (h APIRestStoryManagementHandler) requireSession(
	r *http.Request,
) (*auth.UserIdentity, int, error) {
	identity, err := h.sessions.GetSession(r)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if identity == nil {
		return nil, http.StatusUnauthorized, fmt.Errorf("unauthorized")
	}
	return identity, http.StatusOK, nil
}

// fetchReadableStory fetch a story the caller may read. A story is readable
// by its owner and, when public, by anyone.
func (h APIRestStoryManagementHandler) fetchReadableStory(
	ctxt context.Context, storyID string, identity *auth.UserIdentity,
) (storage.GameStory, int, error) {
	story, err := h.stories.GetStory(ctxt, storyID)
	if err != nil {
		if errors.Is(err, storage.ErrStoryNotFound) {
			return storage.GameStory{}, http.StatusNotFound, err
		}
		return storage.GameStory{}, http.StatusInternalServerError, err
	}
	if story.IsPublic || (identity != nil && identity.ID == story.UserID) {
		return story, http.StatusOK, nil
	}
	// Hide existence of private stories from non-owners
	return storage.GameStory{}, http.StatusNotFound, storage.ErrStoryNotFound
}

// fetchOwnedStory fetch a story the caller must own
func (h APIRestStoryManagementHandler) fetchOwnedStory(
	ctxt context.Context, storyID string, identity *auth.UserIdentity,
) (storage.GameStory, int, error) {
	story, err := h.stories.GetStory(ctxt, storyID)
	if err != nil {
		if errors.Is(err, storage.ErrStoryNotFound) {
			return storage.GameStory{}, http.StatusNotFound, err
		}
		return storage.GameStory{}, http.StatusInternalServerError, err
	}
	if story.UserID != identity.ID {
		return storage.GameStory{}, http.StatusNotFound, storage.ErrStoryNotFound
	}
	return story, http.StatusOK, nil
}

// =======================================================================
// Story records

// APIRestRespStory response wrapping one story record
type APIRestRespStory struct {
	goutils.RestAPIBaseResponse
	// Story the story record
	Story storage.GameStory `json:"story"`
}

// APIRestRespStoryList response wrapping a list of story records
type APIRestRespStoryList struct {
	goutils.RestAPIBaseResponse
	// Stories the story records
	Stories []storage.GameStory `json:"stories"`
}

// APIReqCreateStory request body for creating a story
type APIReqCreateStory struct {
	// Title the user facing story title
	Title string `json:"title"`
	// IsPublic whether the story is readable by anonymous viewers
	IsPublic bool `json:"isPublic"`
}

// -----------------------------------------------------------------------

// CreateStory godoc
// @Summary Create a new story
// @Description Create a new story record owned by the calling user
// @tags Story
// @Accept json
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param story body APIReqCreateStory true "Story parameters"
// @Success 200 {object} APIRestRespStory "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,400,401,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story [post]
func (h APIRestStoryManagementHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	identity, code, err := h.requireSession(r)
	if err != nil {
		msg := "Unauthorized"
		log.WithError(err).WithFields(localLogTags).Info("Rejected story create request")
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	var request APIReqCreateStory
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	timestamp := time.Now().UTC()
	story := storage.GameStory{
		ID:         uuid.New().String(),
		UserID:     identity.ID,
		Title:      request.Title,
		CreatedAt:  timestamp,
		LastActive: timestamp,
		IsPublic:   request.IsPublic,
	}
	if err := h.stories.CreateStory(r.Context(), story); err != nil {
		msg := "Unable to persist story"
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	log.WithFields(localLogTags).Infof("Created story %s for user %s", story.ID, identity.ID)
	respCode = http.StatusOK
	respBody = APIRestRespStory{
		RestAPIBaseResponse: goutils.RestAPIBaseResponse{
			Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
		},
		Story: story,
	}
}

// CreateStoryHandler Wrapper around CreateStory
func (h APIRestStoryManagementHandler) CreateStoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.CreateStory(w, r)
	}
}

// -----------------------------------------------------------------------

// ListPublicStories godoc
// @Summary List public stories
// @Description List all stories marked public. No session needed.
// @tags Story
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Success 200 {object} APIRestRespStoryList "success"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story [get]
func (h APIRestStoryManagementHandler) ListPublicStories(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	stories, err := h.stories.ListPublicStories(r.Context())
	if err != nil {
		msg := "Unable to list public stories"
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespStoryList{
		RestAPIBaseResponse: goutils.RestAPIBaseResponse{
			Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
		},
		Stories: stories,
	}
}

// ListPublicStoriesHandler Wrapper around ListPublicStories
func (h APIRestStoryManagementHandler) ListPublicStoriesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ListPublicStories(w, r)
	}
}

// -----------------------------------------------------------------------

// GetStory godoc
// @Summary Fetch one story
// @Description Fetch one story record. Private stories are only visible to
// their owner.
// @tags Story
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Success 200 {object} APIRestRespStory "success"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,404,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID} [get]
func (h APIRestStoryManagementHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	identity, err := h.sessions.GetSession(r)
	if err != nil {
		msg := "Unable to verify session"
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	storyID := mux.Vars(r)["storyID"]
	story, code, err := h.fetchReadableStory(r.Context(), storyID, identity)
	if err != nil {
		msg := fmt.Sprintf("Unable to fetch story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Infof(msg)
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespStory{
		RestAPIBaseResponse: goutils.RestAPIBaseResponse{
			Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
		},
		Story: story,
	}
}

// GetStoryHandler Wrapper around GetStory
func (h APIRestStoryManagementHandler) GetStoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.GetStory(w, r)
	}
}

// -----------------------------------------------------------------------

// APIReqSetVisibility request body for changing a story's visibility
type APIReqSetVisibility struct {
	// IsPublic whether the story becomes readable by anonymous viewers
	IsPublic bool `json:"isPublic"`
}

// SetStoryVisibility godoc
// @Summary Change a story's visibility
// @Description Mark a story public or private. Only the owner may do this.
// Streams already open are unaffected.
// @tags Story
// @Accept json
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Param visibility body APIReqSetVisibility true "New visibility"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,400,401,404,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID}/visibility [put]
func (h APIRestStoryManagementHandler) SetStoryVisibility(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	identity, code, err := h.requireSession(r)
	if err != nil {
		msg := "Unauthorized"
		log.WithError(err).WithFields(localLogTags).Info("Rejected visibility change request")
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	storyID := mux.Vars(r)["storyID"]
	if _, code, err := h.fetchOwnedStory(r.Context(), storyID, identity); err != nil {
		msg := fmt.Sprintf("Unable to fetch story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Infof(msg)
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	var request APIReqSetVisibility
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	if err := h.stories.SetStoryVisibility(r.Context(), storyID, request.IsPublic); err != nil {
		msg := fmt.Sprintf("Unable to change visibility of story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	log.WithFields(localLogTags).Infof(
		"Story %s visibility now public=%v", storyID, request.IsPublic,
	)
	respCode = http.StatusOK
	respBody = h.GetStdRESTSuccessMsg(r.Context())
}

// SetStoryVisibilityHandler Wrapper around SetStoryVisibility
func (h APIRestStoryManagementHandler) SetStoryVisibilityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.SetStoryVisibility(w, r)
	}
}

// -----------------------------------------------------------------------

// DeleteStory godoc
// @Summary Delete a story
// @Description Delete a story and its scenes. Only the owner may do this.
// @tags Story
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,401,404,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID} [delete]
func (h APIRestStoryManagementHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	identity, code, err := h.requireSession(r)
	if err != nil {
		msg := "Unauthorized"
		log.WithError(err).WithFields(localLogTags).Info("Rejected story delete request")
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	storyID := mux.Vars(r)["storyID"]
	if _, code, err := h.fetchOwnedStory(r.Context(), storyID, identity); err != nil {
		msg := fmt.Sprintf("Unable to fetch story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Infof(msg)
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	if err := h.stories.DeleteStory(r.Context(), storyID); err != nil {
		msg := fmt.Sprintf("Unable to delete story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	log.WithFields(localLogTags).Infof("Deleted story %s", storyID)
	respCode = http.StatusOK
	respBody = h.GetStdRESTSuccessMsg(r.Context())
}

// DeleteStoryHandler Wrapper around DeleteStory
func (h APIRestStoryManagementHandler) DeleteStoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.DeleteStory(w, r)
	}
}

// =======================================================================
// Scene records

// APIRestRespScene response wrapping one scene record
type APIRestRespScene struct {
	goutils.RestAPIBaseResponse
	// Scene the scene record
	Scene storage.GameScene `json:"scene"`
}

// APIRestRespSceneList response wrapping a story's scene records
type APIRestRespSceneList struct {
	goutils.RestAPIBaseResponse
	// Scenes the scene records sorted by order
	Scenes []storage.GameScene `json:"scenes"`
}

// APIReqCreateScene request body for appending a scene to a story
type APIReqCreateScene struct {
	// NarrativeText the scene's narrative text
	NarrativeText string `json:"narrativeText" validate:"required"`
	// ImageURL optional URL of the scene's generated image
	ImageURL string `json:"imageUrl" validate:"omitempty,uri"`
	// Order optional explicit position. When absent the scene is appended.
	Order *int `json:"order,omitempty" validate:"omitempty,gte=0"`
}

// -----------------------------------------------------------------------

// CreateScene godoc
// @Summary Append a scene to a story
// @Description Persist a new scene and push it to the story's live viewers.
// Only the owner may do this.
// @tags Scene
// @Accept json
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Param scene body APIReqCreateScene true "Scene parameters"
// @Success 200 {object} APIRestRespScene "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,400,401,404,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID}/scene [post]
func (h APIRestStoryManagementHandler) CreateScene(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	identity, code, err := h.requireSession(r)
	if err != nil {
		msg := "Unauthorized"
		log.WithError(err).WithFields(localLogTags).Info("Rejected scene create request")
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	storyID := mux.Vars(r)["storyID"]
	if _, code, err := h.fetchOwnedStory(r.Context(), storyID, identity); err != nil {
		msg := fmt.Sprintf("Unable to fetch story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Infof(msg)
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	var request APIReqCreateScene
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}
	if err := h.validate.Struct(&request); err != nil {
		msg := "Invalid scene parameters"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	sceneOrder := 0
	if request.Order != nil {
		sceneOrder = *request.Order
	} else {
		existing, err := h.stories.ListScenes(r.Context(), storyID)
		if err != nil {
			msg := fmt.Sprintf("Unable to list scenes of story %s", storyID)
			log.WithError(err).WithFields(localLogTags).Errorf(msg)
			respCode = http.StatusInternalServerError
			respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
			return
		}
		sceneOrder = len(existing)
	}

	scene := storage.GameScene{
		ID:            uuid.New().String(),
		StoryID:       storyID,
		Order:         sceneOrder,
		NarrativeText: request.NarrativeText,
		ImageURL:      request.ImageURL,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.stories.CreateScene(r.Context(), scene); err != nil {
		msg := fmt.Sprintf("Unable to persist scene for story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	// Push the persisted scene out to live viewers. Broadcast failure does
	// not undo persistence.
	if err := h.broadcaster.PublishScene(r.Context(), storyID, scene, time.Now()); err != nil {
		log.WithError(err).WithFields(localLogTags).Errorf(
			"Scene %s persisted but broadcast failed", scene.ID,
		)
	}

	respCode = http.StatusOK
	respBody = APIRestRespScene{
		RestAPIBaseResponse: goutils.RestAPIBaseResponse{
			Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
		},
		Scene: scene,
	}
}

// CreateSceneHandler Wrapper around CreateScene
func (h APIRestStoryManagementHandler) CreateSceneHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.CreateScene(w, r)
	}
}

// -----------------------------------------------------------------------

// ListScenes godoc
// @Summary List a story's scenes
// @Description List a story's scenes sorted by order. Private stories are
// only visible to their owner.
// @tags Scene
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Success 200 {object} APIRestRespSceneList "success"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,404,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID}/scene [get]
func (h APIRestStoryManagementHandler) ListScenes(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	identity, err := h.sessions.GetSession(r)
	if err != nil {
		msg := "Unable to verify session"
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	storyID := mux.Vars(r)["storyID"]
	if _, code, err := h.fetchReadableStory(r.Context(), storyID, identity); err != nil {
		msg := fmt.Sprintf("Unable to fetch story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Infof(msg)
		respCode = code
		respBody = h.GetStdRESTErrorMsg(r.Context(), code, msg, err.Error())
		return
	}

	scenes, err := h.stories.ListScenes(r.Context(), storyID)
	if err != nil {
		msg := fmt.Sprintf("Unable to list scenes of story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespSceneList{
		RestAPIBaseResponse: goutils.RestAPIBaseResponse{
			Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
		},
		Scenes: scenes,
	}
}

// ListScenesHandler Wrapper around ListScenes
func (h APIRestStoryManagementHandler) ListScenesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.ListScenes(w, r)
	}
}
