package mediacall

import (
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/dialog"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *dialog.Session {
	t.Helper()
	var from, to sip.Uri
	require.NoError(t, sip.ParseUri("sip:alice@example.com", &from))
	require.NoError(t, sip.ParseUri("sip:bob@example.com", &to))
	return dialog.NewOutboundSession(from, to, sip.ContactHeader{Address: from}, "test-agent")
}

func TestAddStreamRejectsDuplicateID(t *testing.T) {
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)

	assert.True(t, call.AddStream(&Stream{ID: "audio", MediaType: "audio"}))
	assert.False(t, call.AddStream(&Stream{ID: "audio", MediaType: "audio"}), "duplicate stream id must be rejected (invariant 2)")
}

func TestMarkStreamInitialisedGatesOnEveryStream(t *testing.T) {
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	call.AddStream(&Stream{ID: "audio", MediaType: "audio"})
	call.AddStream(&Stream{ID: "video", MediaType: "video"})

	assert.False(t, call.MarkStreamInitialised(), "first of two streams must not yet be ready")
	assert.True(t, call.MarkStreamInitialised(), "second of two streams completes the gate")
}

func TestReadyForResponseRequiresAcceptAndStreams(t *testing.T) {
	call := NewInboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	call.AddStream(&Stream{ID: "audio", MediaType: "audio"})

	assert.False(t, call.readyForResponse(), "not accepted yet")
	call.MarkStreamInitialised()
	assert.False(t, call.readyForResponse(), "accept still missing")
	call.Accept()
	assert.True(t, call.readyForResponse())
}

func TestAppendFailedSectionForcesPortZero(t *testing.T) {
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	call.AppendFailedSection(sdpmodel.MediaSection{Name: "video", Port: 16002})

	require.Len(t, call.FailedSections, 1)
	assert.Equal(t, 0, call.FailedSections[0].Port, "failed sections are echoed with port 0 forever (invariant 5)")
}

func TestRemoveStreamUpdatesOrderAndCount(t *testing.T) {
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	call.AddStream(&Stream{ID: "audio", MediaType: "audio"})
	call.AddStream(&Stream{ID: "data", MediaType: "application"})

	call.RemoveStream("audio")
	assert.Equal(t, 1, call.StreamCount())
	streams := call.Streams()
	require.Len(t, streams, 1)
	assert.Equal(t, "data", streams[0].ID)
}

func TestEncryptionActiveRequiresKeyCompatibilityAndRemoteSet(t *testing.T) {
	s := &Stream{SRTPKey: &backend.SRTPKey{KeyID: 1}}

	assert.False(t, s.EncryptionActive(true, sdpmodel.EncryptionOptional), "not remote-set yet")

	s.RemoteSet = true
	assert.True(t, s.EncryptionActive(true, sdpmodel.EncryptionOptional))
	assert.False(t, s.EncryptionActive(false, sdpmodel.EncryptionOptional), "call-level incompatibility overrides")
	assert.False(t, s.EncryptionActive(true, sdpmodel.EncryptionRejected), "peer rejected policy overrides")
}
