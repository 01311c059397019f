package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/agent/adapter/mock"
	"github.com/getpaseo/paseod/internal/agent/adapter/process"
	"github.com/getpaseo/paseod/internal/agent/registry"
	"github.com/getpaseo/paseod/internal/logging"
)

func TestAdapterFactory_MockTagReturnsMockClient(t *testing.T) {
	factory := newAdapterFactory(registry.New(logging.Default()), logging.Default())

	client, err := factory("mock")
	require.NoError(t, err)
	require.IsType(t, &mock.Client{}, client)
}

func TestAdapterFactory_KnownProviderReturnsProcessLauncher(t *testing.T) {
	factory := newAdapterFactory(registry.New(logging.Default()), logging.Default())

	client, err := factory("claude")
	require.NoError(t, err)
	require.IsType(t, &process.Launcher{}, client)
}

func TestAdapterFactory_UnknownProviderErrors(t *testing.T) {
	factory := newAdapterFactory(registry.New(logging.Default()), logging.Default())

	_, err := factory("not-a-real-provider")
	require.Error(t, err)
}
