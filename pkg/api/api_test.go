package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidConfig(t *testing.T) {
	api, err := New(Config{Listen: ":8080"}, &fakeService{})

	require.NoError(t, err)
	assert.NotNil(t, api)
}

func TestNew_EmptyListen(t *testing.T) {
	_, err := New(Config{}, &fakeService{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "listen address must be specified")
}

func TestRun_GracefulShutdown(t *testing.T) {
	api, err := New(Config{Listen: "127.0.0.1:0"}, &fakeService{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	err = api.Run(ctx)
	assert.NoError(t, err)
}
