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

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/JCervantesB/zstory/apis"
	"github.com/JCervantesB/zstory/auth"
	"github.com/JCervantesB/zstory/common"
	"github.com/JCervantesB/zstory/storage"
	"github.com/JCervantesB/zstory/stream"
	"github.com/apex/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// RunStoryServer run the story API server
func RunStoryServer(
	runTimeContext context.Context,
	config *common.SystemConfig,
	instance string,
	stories storage.StoryStore,
	sessions auth.SessionReader,
	wg *sync.WaitGroup,
) error {
	logTags := log.Fields{
		"module":    "cmd",
		"component": "story-server",
		"instance":  instance,
	}

	registry, err := stream.GetSubscriberRegistry(instance)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define subscriber registry")
		return err
	}

	broadcaster, err := stream.GetSceneBroadcaster(registry, instance)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define scene broadcaster")
		return err
	}

	localCtxt, lclCancel := context.WithCancel(runTimeContext)
	defer lclCancel()

	sweeper, err := stream.GetLifecycleSweeper(
		localCtxt,
		registry,
		time.Second*time.Duration(config.Stream.SweepInterval),
		time.Second*time.Duration(config.Stream.IdleTimeout),
		wg,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define lifecycle sweeper")
		return err
	}
	if err := sweeper.Start(); err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to start lifecycle sweeper")
		return err
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			log.WithError(err).WithFields(logTags).Error("Lifecycle sweeper stop failed")
		}
	}()

	streamHandler, err := apis.GetAPIRestStoryStreamHandler(
		localCtxt,
		&config.API.HTTPSetting,
		registry,
		broadcaster,
		stories,
		sessions,
		wg,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define stream HTTP handler")
		return err
	}

	storyHandler, err := apis.GetAPIRestStoryManagementHandler(
		&config.API.HTTPSetting, stories, sessions, broadcaster,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to define story HTTP handler")
		return err
	}

	// -------------------------------------------------------------------
	// Start the HTTP server

	router := mux.NewRouter()
	mainRouter := apis.RegisterPathPrefix(router, config.API.Endpoints.PathPrefix, nil)

	// Story records
	storyRouter := apis.RegisterPathPrefix(
		mainRouter, "/v1/story", map[string]http.HandlerFunc{
			"post": storyHandler.CreateStoryHandler(),
			"get":  storyHandler.ListPublicStoriesHandler(),
		},
	)
	perStoryRouter := apis.RegisterPathPrefix(
		storyRouter, "/{storyID}", map[string]http.HandlerFunc{
			"get":    storyHandler.GetStoryHandler(),
			"delete": storyHandler.DeleteStoryHandler(),
		},
	)
	_ = apis.RegisterPathPrefix(
		perStoryRouter, "/visibility", map[string]http.HandlerFunc{
			"put": storyHandler.SetStoryVisibilityHandler(),
		},
	)

	// Scene records
	_ = apis.RegisterPathPrefix(
		perStoryRouter, "/scene", map[string]http.HandlerFunc{
			"post": storyHandler.CreateSceneHandler(),
			"get":  storyHandler.ListScenesHandler(),
		},
	)

	// Scene stream
	_ = apis.RegisterPathPrefix(
		perStoryRouter, "/broadcast", map[string]http.HandlerFunc{
			"post": streamHandler.BroadcastSceneHandler(),
		},
	)
	streamRouter := apis.RegisterPathPrefix(
		perStoryRouter, "/stream", map[string]http.HandlerFunc{
			"get": streamHandler.StreamStoryHandler(),
		},
	)
	_ = apis.RegisterPathPrefix(
		streamRouter, "/status", map[string]http.HandlerFunc{
			"get": streamHandler.StreamStatusHandler(),
		},
	)

	// Health check
	_ = apis.RegisterPathPrefix(mainRouter, "/alive", map[string]http.HandlerFunc{
		"get": streamHandler.AliveHandler(),
	})
	_ = apis.RegisterPathPrefix(mainRouter, "/ready", map[string]http.HandlerFunc{
		"get": streamHandler.ReadyHandler(),
	})

	// Metrics
	_ = apis.RegisterPathPrefix(mainRouter, "/metrics", map[string]http.HandlerFunc{
		"get": promhttp.Handler().ServeHTTP,
	})

	// Add logging
	router.Use(func(next http.Handler) http.Handler {
		return handlers.CombinedLoggingHandler(streamHandler, next)
	})

	serverCfg := config.API.HTTPSetting.Server
	serverListen := fmt.Sprintf("%s:%d", serverCfg.ListenOn, serverCfg.Port)
	httpSrv := &http.Server{
		Addr:         serverListen,
		ReadTimeout:  time.Second * time.Duration(serverCfg.ReadTimeout),
		WriteTimeout: time.Second * time.Duration(serverCfg.WriteTimeout),
		IdleTimeout:  time.Second * time.Duration(serverCfg.IdleTimeout),
		Handler:      h2c.NewHandler(router, &http2.Server{}),
	}

	// Cancel runtime context on shutdown
	httpSrv.RegisterOnShutdown(lclCancel)

	// Start the server
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP Server Failure")
		}
	}()

	log.WithFields(logTags).Infof("Started HTTP server on http://%s", serverListen)

	// ============================================================================

	<-runTimeContext.Done()

	// Stop the HTTP server
	{
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Failure during HTTP shutdown")
		}
	}

	return nil
}
