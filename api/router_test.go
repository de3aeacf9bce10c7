package api

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Domenick1991/studiobooking/config"
)

func TestNewRouter_RejectsBadTrustedProxies(t *testing.T) {
	_, err := NewRouter(nil, NewAuthenticator(nil, nil, nil), config.HTTPConfig{TrustedProxies: []string{"not-an-ip"}}, Handlers{})
	assert.ErrorContains(t, err, "trusted proxies")
}
