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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JCervantesB/zstory/storage"
	"github.com/JCervantesB/zstory/stream"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

// sseClient one live scene stream connection in tests
type sseClient struct {
	resp   *http.Response
	reader *bufio.Reader
	cancel context.CancelFunc
}

func connectSSEClient(t *testing.T, url string) *sseClient {
	assert := assert.New(t)
	reqCtxt, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(reqCtxt, "GET", url, nil)
	assert.Nil(err)
	resp, err := http.DefaultClient.Do(req)
	assert.Nil(err)
	assert.Equal(http.StatusOK, resp.StatusCode)
	assert.Equal("text/event-stream", resp.Header.Get("Content-Type"))
	return &sseClient{resp: resp, reader: bufio.NewReader(resp.Body), cancel: cancel}
}

// readFrame read the next "data:" payload off the stream
func (c *sseClient) readFrame(t *testing.T, target interface{}) {
	assert := assert.New(t)
	for {
		line, err := c.reader.ReadString('\n')
		assert.Nil(err)
		if strings.HasPrefix(line, "data: ") {
			payload := strings.TrimSuffix(strings.TrimPrefix(line, "data: "), "\n")
			assert.Nil(json.Unmarshal([]byte(payload), target))
			return
		}
	}
}

func (c *sseClient) close() {
	c.cancel()
	_ = c.resp.Body.Close()
}

// waitForSubscriberCount poll the registry until the story's count matches
func waitForSubscriberCount(
	t *testing.T, registry stream.SubscriberRegistry, storyID string, expected int,
) {
	assert := assert.New(t)
	deadline := time.Now().Add(time.Second * 5)
	for time.Now().Before(deadline) {
		if registry.SubscriberCount(storyID) == expected {
			return
		}
		time.Sleep(time.Millisecond * 10)
	}
	assert.Equal(expected, registry.SubscriberCount(storyID))
}

func TestStoryStreamEndToEnd(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	stories, err := storage.GetInMemoryStoryStore()
	assert.Nil(err)
	registry, err := stream.GetSubscriberRegistry("ut-stream-e2e")
	assert.Nil(err)
	broadcaster, err := stream.GetSceneBroadcaster(registry, "ut-stream-e2e")
	assert.Nil(err)

	ownerToken := uuid.NewString()
	sessions := defineUnitTestSessionReader(t, ownerToken, "user-1", "Owner")

	uut, err := GetAPIRestStoryStreamHandler(
		utCtxt, defineUnitTestHTTPConfig(), registry, broadcaster, stories, sessions, &wg,
	)
	assert.Nil(err)

	router := mux.NewRouter()
	router.HandleFunc("/v1/story/{storyID}/stream", uut.StreamStoryHandler())
	router.HandleFunc("/v1/story/{storyID}/broadcast", uut.BroadcastSceneHandler())
	srv := httptest.NewServer(router)
	defer srv.Close()

	startTime := time.Now().UTC()
	story := storage.GameStory{
		ID:         uuid.NewString(),
		UserID:     "user-1",
		Title:      "UT Story",
		CreatedAt:  startTime,
		LastActive: startTime,
		IsPublic:   true,
	}
	assert.Nil(stories.CreateStory(utCtxt, story))

	streamURL := fmt.Sprintf("%s/v1/story/%s/stream", srv.URL, story.ID)

	// Case 0: two viewers connect and receive the handshake
	viewer1 := connectSSEClient(t, streamURL)
	viewer2 := connectSSEClient(t, streamURL)
	{
		for _, viewer := range []*sseClient{viewer1, viewer2} {
			var event stream.ConnectedEvent
			viewer.readFrame(t, &event)
			assert.Equal(stream.EventTypeConnected, event.Type)
			assert.Equal(story.ID, event.StoryID)
		}
		assert.Equal(2, registry.SubscriberCount(story.ID))
	}

	// Case 1: a broadcast scene reaches both viewers
	scene := storage.GameScene{
		ID:            uuid.NewString(),
		StoryID:       story.ID,
		Order:         0,
		NarrativeText: "The door creaks open.",
		ImageURL:      "https://images.example.com/door.png",
		CreatedAt:     startTime,
	}
	{
		body, err := json.Marshal(APIReqBroadcastScene{Scene: scene})
		assert.Nil(err)
		req, err := http.NewRequest(
			"POST",
			fmt.Sprintf("%s/v1/story/%s/broadcast", srv.URL, story.ID),
			bytes.NewReader(body),
		)
		assert.Nil(err)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", ownerToken))
		resp, err := http.DefaultClient.Do(req)
		assert.Nil(err)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Nil(resp.Body.Close())

		for _, viewer := range []*sseClient{viewer1, viewer2} {
			var event stream.NewSceneEvent
			viewer.readFrame(t, &event)
			assert.Equal(stream.EventTypeNewScene, event.Type)
			assert.Equal(scene.ID, event.Scene.ID)
			assert.Equal(scene.NarrativeText, event.Scene.NarrativeText)
			assert.Equal(scene.ImageURL, event.ImageURL)
		}
	}

	// Case 2: a disconnected viewer is deregistered
	{
		viewer1.close()
		waitForSubscriberCount(t, registry, story.ID, 1)
	}

	// Case 3: later broadcasts only reach the remaining viewer
	{
		scene2 := scene
		scene2.ID = uuid.NewString()
		scene2.Order = 1
		body, err := json.Marshal(APIReqBroadcastScene{Scene: scene2})
		assert.Nil(err)
		req, err := http.NewRequest(
			"POST",
			fmt.Sprintf("%s/v1/story/%s/broadcast", srv.URL, story.ID),
			bytes.NewReader(body),
		)
		assert.Nil(err)
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", ownerToken))
		resp, err := http.DefaultClient.Do(req)
		assert.Nil(err)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Nil(resp.Body.Close())

		var event stream.NewSceneEvent
		viewer2.readFrame(t, &event)
		assert.Equal(scene2.ID, event.Scene.ID)
	}

	viewer2.close()
	waitForSubscriberCount(t, registry, story.ID, 0)
}

func TestStoryStreamVisibilityCheck(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	stories, err := storage.GetInMemoryStoryStore()
	assert.Nil(err)
	registry, err := stream.GetSubscriberRegistry("ut-stream-visibility")
	assert.Nil(err)
	broadcaster, err := stream.GetSceneBroadcaster(registry, "ut-stream-visibility")
	assert.Nil(err)

	sessions := defineUnitTestSessionReader(t, uuid.NewString(), "user-1", "Owner")
	uut, err := GetAPIRestStoryStreamHandler(
		utCtxt, defineUnitTestHTTPConfig(), registry, broadcaster, stories, sessions, &wg,
	)
	assert.Nil(err)

	router := mux.NewRouter()
	router.HandleFunc("/v1/story/{storyID}/stream", uut.StreamStoryHandler())
	srv := httptest.NewServer(router)
	defer srv.Close()

	startTime := time.Now().UTC()
	privateStory := storage.GameStory{
		ID:         uuid.NewString(),
		UserID:     "user-1",
		Title:      "UT Private Story",
		CreatedAt:  startTime,
		LastActive: startTime,
		IsPublic:   false,
	}
	assert.Nil(stories.CreateStory(utCtxt, privateStory))

	// Case 0: a private story can not be streamed, and nothing is registered
	{
		resp, err := http.Get(fmt.Sprintf("%s/v1/story/%s/stream", srv.URL, privateStory.ID))
		assert.Nil(err)
		assert.Equal(http.StatusNotFound, resp.StatusCode)
		assert.Nil(resp.Body.Close())
		assert.Equal(0, registry.SubscriberCount(privateStory.ID))
	}

	// Case 1: an unknown story behaves the same
	{
		resp, err := http.Get(fmt.Sprintf("%s/v1/story/%s/stream", srv.URL, uuid.NewString()))
		assert.Nil(err)
		assert.Equal(http.StatusNotFound, resp.StatusCode)
		assert.Nil(resp.Body.Close())
	}

	// Case 2: turning the story private after connect does not end the stream
	{
		assert.Nil(stories.SetStoryVisibility(utCtxt, privateStory.ID, true))
		viewer := connectSSEClient(
			t, fmt.Sprintf("%s/v1/story/%s/stream", srv.URL, privateStory.ID),
		)
		var event stream.ConnectedEvent
		viewer.readFrame(t, &event)
		assert.Equal(stream.EventTypeConnected, event.Type)

		assert.Nil(stories.SetStoryVisibility(utCtxt, privateStory.ID, false))
		assert.Nil(broadcaster.PublishScene(utCtxt, privateStory.ID, storage.GameScene{
			ID:            uuid.NewString(),
			StoryID:       privateStory.ID,
			Order:         0,
			NarrativeText: "Still streaming.",
			CreatedAt:     startTime,
		}, time.Now()))

		var sceneEvent stream.NewSceneEvent
		viewer.readFrame(t, &sceneEvent)
		assert.Equal(stream.EventTypeNewScene, sceneEvent.Type)

		viewer.close()
		waitForSubscriberCount(t, registry, privateStory.ID, 0)
	}
}

func TestStreamStatusAndBroadcastAuth(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	wg := sync.WaitGroup{}
	defer wg.Wait()
	utCtxt, utCtxtCancel := context.WithCancel(context.Background())
	defer utCtxtCancel()

	stories, err := storage.GetInMemoryStoryStore()
	assert.Nil(err)
	registry, err := stream.GetSubscriberRegistry("ut-stream-status")
	assert.Nil(err)
	broadcaster, err := stream.GetSceneBroadcaster(registry, "ut-stream-status")
	assert.Nil(err)

	sessions := defineUnitTestSessionReader(t, uuid.NewString(), "user-1", "Owner")
	uut, err := GetAPIRestStoryStreamHandler(
		utCtxt, defineUnitTestHTTPConfig(), registry, broadcaster, stories, sessions, &wg,
	)
	assert.Nil(err)

	storyID := uuid.NewString()

	// Case 0: status of a story with no viewers
	{
		req, err := http.NewRequest(
			"GET", fmt.Sprintf("/v1/story/%s/stream/status", storyID), nil,
		)
		assert.Nil(err)

		router := mux.NewRouter()
		router.HandleFunc("/v1/story/{storyID}/stream/status", uut.StreamStatusHandler())
		respRecorder := httptest.NewRecorder()
		router.ServeHTTP(respRecorder, req)

		assert.Equal(http.StatusOK, respRecorder.Code)
		var msg APIRestRespStreamStatus
		assert.Nil(json.Unmarshal(respRecorder.Body.Bytes(), &msg))
		assert.True(msg.Success)
		assert.Equal(storyID, msg.StoryID)
		assert.Equal(0, msg.ActiveConnections)
	}

	// Case 1: status reflects registered viewers
	{
		_, err := registry.AddSubscriber(storyID, &testEventSink{}, time.Now())
		assert.Nil(err)

		req, err := http.NewRequest(
			"GET", fmt.Sprintf("/v1/story/%s/stream/status", storyID), nil,
		)
		assert.Nil(err)

		router := mux.NewRouter()
		router.HandleFunc("/v1/story/{storyID}/stream/status", uut.StreamStatusHandler())
		respRecorder := httptest.NewRecorder()
		router.ServeHTTP(respRecorder, req)

		assert.Equal(http.StatusOK, respRecorder.Code)
		var msg APIRestRespStreamStatus
		assert.Nil(json.Unmarshal(respRecorder.Body.Bytes(), &msg))
		assert.Equal(1, msg.ActiveConnections)
	}

	// Case 2: anonymous broadcast is rejected
	{
		body, err := json.Marshal(APIReqBroadcastScene{Scene: storage.GameScene{
			ID:            uuid.NewString(),
			StoryID:       storyID,
			NarrativeText: "Not yours.",
		}})
		assert.Nil(err)
		req, err := http.NewRequest(
			"POST", fmt.Sprintf("/v1/story/%s/broadcast", storyID), bytes.NewReader(body),
		)
		assert.Nil(err)

		router := mux.NewRouter()
		router.HandleFunc("/v1/story/{storyID}/broadcast", uut.BroadcastSceneHandler())
		respRecorder := httptest.NewRecorder()
		router.ServeHTTP(respRecorder, req)

		assert.Equal(http.StatusUnauthorized, respRecorder.Code)
	}
}
