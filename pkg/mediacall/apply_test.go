package mediacall

import (
	"testing"

	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/logging"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(be backend.MediaBackend) *Manager {
	return &Manager{
		cfg:     Config{ServerDefaultEncryption: sdpmodel.EncryptionOptional},
		backend: be,
		log:     logging.Nop(),
	}
}

func TestApplyRemoteMessageRemovesZeroPortSection(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	call.AddStream(&Stream{ID: "audio", MediaType: "audio", Handle: h})

	msg := &sdpmodel.Message{Sections: []sdpmodel.MediaSection{{Name: "audio", Port: 0}}}
	cerr := m.applyRemoteMessage(call, msg)
	require.Error(t, cerr, "removing the only stream must end the call")
	assert.Equal(t, 0, call.StreamCount())
}

func TestApplyRemoteMessageFailsUnknownSection(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	call.AddStream(&Stream{ID: "audio", MediaType: "audio", Handle: h})

	msg := &sdpmodel.Message{Sections: []sdpmodel.MediaSection{
		{Name: "audio", Port: 16000, Codecs: []sdpmodel.Codec{{PayloadID: 0, Name: "PCMU", ClockRate: 8000}}},
		{Name: "video", Port: 16002},
	}}
	cerr := m.applyRemoteMessage(call, msg)
	require.Nil(t, cerr)
	require.Len(t, call.FailedSections, 1)
	assert.Equal(t, "video", call.FailedSections[0].Name)
}

func TestApplySectionMarksRemoteSetAndHeld(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	s := &Stream{ID: "audio", MediaType: "audio", Handle: h}
	call.AddStream(s)

	sec := sdpmodel.MediaSection{
		Name:     "audio",
		Port:     16000,
		Codecs:   []sdpmodel.Codec{{PayloadID: 0, Name: "PCMU", ClockRate: 8000}},
		Inactive: true,
	}
	ok := m.applySection(call, s, sec)
	assert.True(t, ok)
	assert.True(t, s.RemoteSet)
	assert.True(t, s.Held)
	assert.True(t, be.heldState[h])
}

func TestApplySectionFailsWhenBackendRejectsAllCodecs(t *testing.T) {
	be := newFakeBackend()
	be.acceptRemote = false
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	s := &Stream{ID: "audio", MediaType: "audio", Handle: h}
	call.AddStream(s)

	sec := sdpmodel.MediaSection{Name: "audio", Port: 16000, Codecs: []sdpmodel.Codec{{PayloadID: 0, Name: "PCMU", ClockRate: 8000}}}
	assert.False(t, m.applySection(call, s, sec))
}

func TestApplyRemoteMessageClearsEncryptionCompatibleOnRejectedVsRequired(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionRequired)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	call.AddStream(&Stream{ID: "audio", MediaType: "audio", Handle: h})

	rejected := sdpmodel.EncryptionRejected
	msg := &sdpmodel.Message{Sections: []sdpmodel.MediaSection{
		{Name: "audio", Port: 16000, Codecs: []sdpmodel.Codec{{PayloadID: 0, Name: "PCMU", ClockRate: 8000}}, EncryptionPolicy: &rejected},
	}}
	require.Nil(t, m.applyRemoteMessage(call, msg))
	assert.False(t, call.EncryptionCompatible, "a rejected peer policy against a required local policy must mark the call incompatible (§4.4.1)")
}
