package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/apperrors"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	req := CreateAgentRequest{Provider: "claude", Cwd: "/tmp/work"}
	env, err := Encode(TypeCreateAgentRequest, "req-1", req)
	require.NoError(t, err)
	require.Equal(t, TypeCreateAgentRequest, env.Type)
	require.Equal(t, "req-1", env.RequestID)

	var decoded CreateAgentRequest
	require.NoError(t, env.Decode(&decoded))
	require.Equal(t, req, decoded)
}

func TestEncode_NilPayloadProducesEmptyEnvelope(t *testing.T) {
	env, err := Encode(TypePing, "", nil)
	require.NoError(t, err)
	require.Empty(t, env.Payload)

	var v map[string]any
	require.NoError(t, env.Decode(&v))
	require.Nil(t, v)
}

func TestNewRPCError_CarriesCodeFromApperrorsKind(t *testing.T) {
	err := apperrors.NotFoundf("agent %q not found", agent.ID("a1"))
	env := NewRPCError("req-2", TypeSendAgentMessage, err)
	require.Equal(t, TypeRPCError, env.Type)

	var payload RPCError
	require.NoError(t, env.Decode(&payload))
	require.Equal(t, "req-2", payload.RequestID)
	require.Equal(t, TypeSendAgentMessage, payload.RequestType)
	require.Equal(t, apperrors.NotFound, payload.Code)
}
