package mediacall

import (
	"testing"

	"github.com/ocsphone/mediacall/pkg/sdpmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundCallStartsIdleThenLocalOffering(t *testing.T) {
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	assert.Equal(t, StateIdle, call.State())

	require.NoError(t, call.Fire("start-outbound"))
	assert.Equal(t, StateLocalOffering, call.State())
}

func TestInboundInviteEnterRemoteOffering(t *testing.T) {
	call := NewInboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	require.NoError(t, call.Fire("receive-invite"))
	assert.Equal(t, StateRemoteOffering, call.State())
}

func TestEstablishedThenHoldRoundTrip(t *testing.T) {
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	require.NoError(t, call.Fire("start-outbound"))
	require.NoError(t, call.Fire("establish"))
	assert.Equal(t, StateEstablished, call.State())

	require.NoError(t, call.Fire("reinvite"))
	assert.Equal(t, StateReinviting, call.State())

	require.NoError(t, call.Fire("reinvite-done"))
	assert.Equal(t, StateEstablished, call.State())
}

func TestTerminateFromEveryLiveState(t *testing.T) {
	for _, events := range [][]string{
		{},                                          // Idle
		{"start-outbound"},                          // LocalOffering
		{"receive-invite"},                          // RemoteOffering
		{"start-outbound", "establish"},             // Established
		{"start-outbound", "establish", "reinvite"}, // Reinviting
	} {
		call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
		for _, event := range events {
			require.NoError(t, call.Fire(event))
		}
		require.NoError(t, call.Fire("terminate"))
		assert.Equal(t, StateTerminating, call.State())
		require.NoError(t, call.Fire("terminated"))
		assert.Equal(t, StateTerminated, call.State())
	}
}

func TestInvalidTransitionIsRejected(t *testing.T) {
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	// "reinvite" is only valid from Established, not Idle.
	assert.Error(t, call.Fire("reinvite"))
}
