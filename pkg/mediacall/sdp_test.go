package mediacall

import (
	"strings"
	"testing"

	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeOfferIncludesFailedSectionsAtPortZero(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	call.AddStream(&Stream{ID: "audio", MediaType: "audio", Handle: h})
	call.AppendFailedSection(sdpmodel.MediaSection{Name: "video", Port: 16004})

	body, err := m.serializeOffer(call)
	require.NoError(t, err)
	assert.Contains(t, string(body), "m=audio")
	assert.Contains(t, string(body), "m=video 0")
}

func TestSerializeOfferMarksEverySectionInactiveWhenAnyHeld(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	h1, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	h2, _ := be.CreateStream(nil, call.CallID(), "video", "video", backend.PortRange{}, "rfc-5245")
	call.AddStream(&Stream{ID: "audio", MediaType: "audio", Handle: h1, Held: true})
	call.AddStream(&Stream{ID: "video", MediaType: "video", Handle: h2})

	body, err := m.serializeOffer(call)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(body), "a=inactive"), "both the held audio and the unheld video section must carry a=inactive")
}

func TestBuildSectionOmitsEncryptionKeyWhenPolicyRejected(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionRejected)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	s := &Stream{ID: "audio", MediaType: "audio", Handle: h, SRTPKey: &backend.SRTPKey{KeyID: 4}}
	call.AddStream(s)

	sec := m.buildSection(call, s, "203.0.113.9")
	assert.Nil(t, sec.EncryptionKey)
}

func TestBuildSectionIncludesEncryptionKeyWhenPolicyAllows(t *testing.T) {
	be := newFakeBackend()
	m := newTestManager(be)
	call := NewOutboundCall(newTestSession(t), "sip:bob@example.com", sdpmodel.ICERFC5245, sdpmodel.EncryptionOptional)
	h, _ := be.CreateStream(nil, call.CallID(), "audio", "audio", backend.PortRange{}, "rfc-5245")
	s := &Stream{ID: "audio", MediaType: "audio", Handle: h, SRTPKey: &backend.SRTPKey{KeyID: 4}}
	call.AddStream(s)

	sec := m.buildSection(call, s, "203.0.113.9")
	require.NotNil(t, sec.EncryptionKey)
	assert.Equal(t, 4, sec.EncryptionKey.KeyID)
}
