package auth

import (
	"net/http"
	"testing"

	"github.com/JCervantesB/zstory/common"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestStaticTokenSessionReader(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut, err := GetStaticTokenSessionReader([]common.AuthTokenConfig{
		{Token: "token-alpha", UserID: "user-1", UserName: "Alpha"},
		{Token: "token-beta", UserID: "user-2", UserName: "Beta"},
	})
	assert.Nil(err)

	defineRequest := func(authHeader string) *http.Request {
		req, err := http.NewRequest("GET", "http://unit-test/v1/story", nil)
		assert.Nil(err)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		return req
	}

	// Case 0: no header resolves to anonymous
	{
		identity, err := uut.GetSession(defineRequest(""))
		assert.Nil(err)
		assert.Nil(identity)
	}

	// Case 1: known token resolves to its user
	{
		identity, err := uut.GetSession(defineRequest("Bearer token-alpha"))
		assert.Nil(err)
		assert.NotNil(identity)
		assert.Equal("user-1", identity.ID)
		assert.Equal("Alpha", identity.Name)
	}

	// Case 2: the scheme is case insensitive
	{
		identity, err := uut.GetSession(defineRequest("bearer token-beta"))
		assert.Nil(err)
		assert.NotNil(identity)
		assert.Equal("user-2", identity.ID)
	}

	// Case 3: unknown token resolves to anonymous
	{
		identity, err := uut.GetSession(defineRequest("Bearer bogus"))
		assert.Nil(err)
		assert.Nil(identity)
	}

	// Case 4: malformed headers resolve to anonymous
	{
		for _, header := range []string{"token-alpha", "Basic dXNlcjpwYXNz", "Bearer"} {
			identity, err := uut.GetSession(defineRequest(header))
			assert.Nil(err)
			assert.Nil(identity)
		}
	}
}
