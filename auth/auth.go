// Package auth resolves the caller identity of incoming HTTP requests.
package auth

import (
	"net/http"
	"strings"

	"github.com/JCervantesB/zstory/common"
	"github.com/apex/log"
)

// UserIdentity is the resolved caller of a request
type UserIdentity struct {
	// ID is the user ID
	ID string `json:"id" validate:"required"`
	// Name is the user facing display name
	Name string `json:"name"`
}

// SessionReader resolves a request to a user identity. A nil identity with a
// nil error means the request is anonymous.
type SessionReader interface {
	// GetSession resolve the caller of a request
	GetSession(r *http.Request) (*UserIdentity, error)
}

// staticTokenSessionReader implements SessionReader against a fixed token list
type staticTokenSessionReader struct {
	common.Component
	tokens map[string]UserIdentity
}

// GetStaticTokenSessionReader define SessionReader backed by a static list of
// bearer tokens from configuration
func GetStaticTokenSessionReader(tokens []common.AuthTokenConfig) (SessionReader, error) {
	logTags := log.Fields{
		"module": "auth", "component": "static-token-session-reader",
	}
	byToken := map[string]UserIdentity{}
	for _, entry := range tokens {
		byToken[entry.Token] = UserIdentity{ID: entry.UserID, Name: entry.UserName}
	}
	log.WithFields(logTags).Infof("Loaded %d auth tokens", len(byToken))
	return &staticTokenSessionReader{
		Component: common.Component{LogTags: logTags},
		tokens:    byToken,
	}, nil
}

// GetSession resolve the caller of a request
func (s *staticTokenSessionReader) GetSession(r *http.Request) (*UserIdentity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, nil
	}
	identity, ok := s.tokens[strings.TrimSpace(parts[1])]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}
