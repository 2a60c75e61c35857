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
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/JCervantesB/zstory/auth"
	"github.com/JCervantesB/zstory/common"
	"github.com/JCervantesB/zstory/metrics"
	"github.com/JCervantesB/zstory/storage"
	"github.com/JCervantesB/zstory/stream"
	"github.com/alwitt/goutils"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// APIRestStoryStreamHandler REST handler for the scene stream APIs
type APIRestStoryStreamHandler struct {
	goutils.RestAPIHandler
	registry    stream.SubscriberRegistry
	broadcaster stream.SceneBroadcaster
	stories     storage.StoryStore
	sessions    auth.SessionReader
	validate    *validator.Validate
	baseContext context.Context
	wg          *sync.WaitGroup
}

// GetAPIRestStoryStreamHandler define APIRestStoryStreamHandler
func GetAPIRestStoryStreamHandler(
	baseContext context.Context,
	httpConfig *common.HTTPConfig,
	registry stream.SubscriberRegistry,
	broadcaster stream.SceneBroadcaster,
	stories storage.StoryStore,
	sessions auth.SessionReader,
	wg *sync.WaitGroup,
) (APIRestStoryStreamHandler, error) {
	logTags := log.Fields{
		"module":    "rest",
		"component": "story-stream",
	}
	return APIRestStoryStreamHandler{
		RestAPIHandler: defineRestAPIHandler(logTags, httpConfig),
		registry:       registry,
		broadcaster:    broadcaster,
		stories:        stories,
		sessions:       sessions,
		validate:       validator.New(),
		baseContext:    baseContext,
		wg:             wg,
	}, nil
}

// =======================================================================
// Scene stream subscription

// httpEventSink adapts one HTTP response into a stream.EventSink. Writes can
// arrive from the broadcaster and the sweeper concurrently, so write and
// flush happen under a lock.
type httpEventSink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	lock    sync.Mutex
	closed  bool
	done    chan struct{}
}

func defineHTTPEventSink(w http.ResponseWriter, flusher http.Flusher) *httpEventSink {
	return &httpEventSink{writer: w, flusher: flusher, done: make(chan struct{})}
}

// SendEvent write one serialized frame to the viewer
func (s *httpEventSink) SendEvent(frame []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return fmt.Errorf("event sink already closed")
	}
	if _, err := s.writer.Write(frame); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close mark the sink closed and release the blocked request handler
func (s *httpEventSink) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done closes when the sink is closed
func (s *httpEventSink) Done() <-chan struct{} {
	return s.done
}

// -----------------------------------------------------------------------

// StreamStory godoc
// @Summary Subscribe to a story's scene stream
// @Description Establish a server sent event stream carrying new scenes of one
// public story. The stream will close on client disconnect, server shutdown,
// or when the connection is reaped for inactivity.
// @tags Stream
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 404,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID}/stream [get]
func (h APIRestStoryStreamHandler) StreamStory(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	streaming := false
	defer func() {
		if streaming {
			return
		}
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	vars := mux.Vars(r)
	storyID, ok := vars["storyID"]
	if !ok {
		msg := "No story ID provided"
		log.WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	// The visibility check happens once, here. A story turned private later
	// does not terminate streams opened while it was public.
	public, err := h.stories.IsStoryPublic(r.Context(), storyID)
	if err != nil {
		msg := fmt.Sprintf("Unable to check visibility of story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}
	if !public {
		msg := "Story not found or not public"
		log.WithFields(localLogTags).Infof("Rejected stream of story %s: %s", storyID, msg)
		respCode = http.StatusNotFound
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusNotFound, msg, msg)
		return
	}

	writeFlusher, ok := w.(http.Flusher)
	if !ok {
		msg := "Streaming not supported"
		log.WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, msg)
		return
	}

	// Send support headers for SSE first
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	logTags := localLogTags
	logTags["story"] = storyID

	sink := defineHTTPEventSink(w, writeFlusher)
	subscriber, err := h.registry.AddSubscriber(storyID, sink, time.Now())
	if err != nil {
		msg := fmt.Sprintf("Unable to register stream of story %s", storyID)
		log.WithError(err).WithFields(logTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}
	streaming = true

	// Confirm the subscription to the viewer
	if frame, err := stream.MarshalConnectedEventFrame(storyID); err == nil {
		if err := sink.SendEvent(frame); err != nil {
			log.WithError(err).WithFields(logTags).Error("Failed to send stream handshake")
		} else {
			metrics.RecordFrameSent(stream.EventTypeConnected)
		}
	} else {
		log.WithError(err).WithFields(logTags).Error("Unable to serialize stream handshake")
	}

	log.WithFields(logTags).Infof("Streaming scenes of story %s as %s", storyID, subscriber.ID())

	// Block until the viewer leaves, the server stops, or the sink is closed
	// by the sweeper or broadcaster.
	select {
	case <-h.baseContext.Done():
		log.WithFields(logTags).Info("Terminating scene stream on server stop")
	case <-r.Context().Done():
		log.WithFields(logTags).Info("Terminating scene stream on request end")
	case <-sink.Done():
		log.WithFields(logTags).Info("Terminating scene stream on connection reap")
	}

	if err := h.registry.RemoveSubscriber(storyID, sink); err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to deregister scene stream")
	}
	if err := sink.Close(); err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to close scene stream sink")
	}
}

// StreamStoryHandler Wrapper around StreamStory
func (h APIRestStoryStreamHandler) StreamStoryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.StreamStory(w, r)
	}
}

// -----------------------------------------------------------------------

// APIRestRespStreamStatus response of a stream status query
type APIRestRespStreamStatus struct {
	goutils.RestAPIBaseResponse
	// StoryID the story queried
	StoryID string `json:"storyId"`
	// ActiveConnections number of live stream connections for the story
	ActiveConnections int `json:"activeConnections"`
}

// StreamStatus godoc
// @Summary Query a story's stream status
// @Description Report the number of live scene stream connections for a story
// @tags Stream
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Success 200 {object} APIRestRespStreamStatus "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,400,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID}/stream/status [get]
func (h APIRestStoryStreamHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	vars := mux.Vars(r)
	storyID, ok := vars["storyID"]
	if !ok {
		msg := "No story ID provided"
		log.WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	respCode = http.StatusOK
	respBody = APIRestRespStreamStatus{
		RestAPIBaseResponse: goutils.RestAPIBaseResponse{
			Success: true, RequestID: h.ReadRequestIDFromContext(r.Context()),
		},
		StoryID:           storyID,
		ActiveConnections: h.registry.SubscriberCount(storyID),
	}
}

// StreamStatusHandler Wrapper around StreamStatus
func (h APIRestStoryStreamHandler) StreamStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.StreamStatus(w, r)
	}
}

// =======================================================================
// Scene broadcast

// APIReqBroadcastScene request body of a scene broadcast
type APIReqBroadcastScene struct {
	// Scene the scene to push to live viewers
	Scene storage.GameScene `json:"scene"`
	// ImageURL optional image URL overriding the scene's own
	ImageURL string `json:"imageUrl" validate:"omitempty,uri"`
}

// BroadcastScene godoc
// @Summary Push a scene to a story's live viewers
// @Description Fan an already persisted scene out to every live stream
// connection of the story. Requires an authenticated session.
// @tags Stream
// @Accept json
// @Produce json
// @Param Zstory-Request-ID header string false "User provided request ID to match against logs"
// @Param storyID path string true "Story ID"
// @Param scene body APIReqBroadcastScene true "Scene to broadcast"
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 400 {object} goutils.RestAPIBaseResponse "error"
// @Failure 401 {object} goutils.RestAPIBaseResponse "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Header 200,400,401,500 {string} Zstory-Request-ID "Request ID to match against logs"
// @Router /v1/story/{storyID}/broadcast [post]
func (h APIRestStoryStreamHandler) BroadcastScene(w http.ResponseWriter, r *http.Request) {
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
	if identity == nil {
		msg := "Unauthorized"
		log.WithFields(localLogTags).Infof("Rejected anonymous broadcast request")
		respCode = http.StatusUnauthorized
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusUnauthorized, msg, msg)
		return
	}

	vars := mux.Vars(r)
	storyID, ok := vars["storyID"]
	if !ok {
		msg := "No story ID provided"
		log.WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, msg)
		return
	}

	var request APIReqBroadcastScene
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		msg := "Unable to parse request body"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	scene := request.Scene
	scene.StoryID = storyID
	if request.ImageURL != "" {
		scene.ImageURL = request.ImageURL
	}

	if err := h.validate.Struct(&scene); err != nil {
		msg := "Invalid scene"
		log.WithError(err).WithFields(localLogTags).Error(msg)
		respCode = http.StatusBadRequest
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusBadRequest, msg, err.Error())
		return
	}

	if err := h.broadcaster.PublishScene(r.Context(), storyID, scene, time.Now()); err != nil {
		msg := fmt.Sprintf("Unable to broadcast scene to story %s", storyID)
		log.WithError(err).WithFields(localLogTags).Errorf(msg)
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, err.Error())
		return
	}

	respCode = http.StatusOK
	respBody = h.GetStdRESTSuccessMsg(r.Context())
}

// BroadcastSceneHandler Wrapper around BroadcastScene
func (h APIRestStoryStreamHandler) BroadcastSceneHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.BroadcastScene(w, r)
	}
}

// =======================================================================
// Health Checks

// Alive godoc
// @Summary For story server liveness check
// @Description Will return success to indicate the story server is live
// @tags Management
// @Produce json
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /alive [get]
func (h APIRestStoryStreamHandler) Alive(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	if err := h.WriteRESTResponse(
		w, http.StatusOK, h.GetStdRESTSuccessMsg(r.Context()), nil,
	); err != nil {
		log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
	}
}

// AliveHandler Wrapper around Alive
func (h APIRestStoryStreamHandler) AliveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Alive(w, r)
	}
}

// -----------------------------------------------------------------------

// Ready godoc
// @Summary For story server readiness check
// @Description Will return success if the story record store is reachable
// @tags Management
// @Produce json
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /ready [get]
func (h APIRestStoryStreamHandler) Ready(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	if _, err := h.stories.ListPublicStories(r.Context()); err != nil {
		msg := "not ready"
		log.WithError(err).WithFields(localLogTags).Error("Story record store probe failed")
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(r.Context(), http.StatusInternalServerError, msg, msg)
		return
	}
	respCode = http.StatusOK
	respBody = h.GetStdRESTSuccessMsg(r.Context())
}

// ReadyHandler Wrapper around Ready
func (h APIRestStoryStreamHandler) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Ready(w, r)
	}
}
