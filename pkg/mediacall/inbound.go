package mediacall

import (
	"context"
	"strings"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/callerr"
	"github.com/ocsphone/mediacall/pkg/dialog"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
)

// onInviteRequest implements spec.md §4.4's "Inbound INVITE" path.
func (m *Manager) onInviteRequest(req *sip.Request, tx sip.ServerTransaction) {
	callID := req.CallID().Value()
	ctx := context.Background()

	if call, ok := m.lookupCall(callID); ok {
		m.onReinvite(ctx, call, req, tx)
		return
	}

	msg, err := sdpmodel.Parse(req.Body())
	if err != nil {
		_ = m.transport.RespondInTransaction(callID, sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		return
	}

	isVoiceVideo := msg.SectionByName("data") == nil && msg.SectionByName("applicationsharing") == nil
	if isVoiceVideo && m.registry.HasAudioCall() {
		_ = m.transport.RespondInTransaction(callID, sip.NewResponseFromRequest(req, 486, "Busy Here", nil))
		return
	}

	if isSelfLoop(req, m.cfg.SelfURI) {
		_ = m.transport.RespondInTransaction(callID, sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		return
	}

	var contactURI sip.Uri
	_ = sip.ParseUri(m.cfg.SelfURI, &contactURI)
	session := dialog.NewInboundSession(req, sip.ContactHeader{Address: contactURI}, m.cfg.UserAgent)

	call := NewInboundCall(session, req.From().Address.String(), msg.ICEVersion, m.cfg.EffectiveEncryption)
	call.InboundInvite = req
	if !m.registry.Add(call) {
		_ = m.transport.RespondInTransaction(callID, sip.NewResponseFromRequest(req, 500, "Server Internal Error", nil))
		return
	}
	_ = call.Fire("receive-invite")

	for _, sec := range msg.Sections {
		if sec.Port == 0 {
			continue
		}
		if _, exists := call.Stream(sec.Name); exists {
			continue
		}
		s := &Stream{ID: sec.Name, MediaType: mediaTypeForSection(sec.Name)}
		switch sec.Name {
		case "data":
			s.Attributes = append(s.Attributes, sdpmodel.Attribute{Name: "recvonly", Value: ""})
		case "applicationsharing":
			s.Attributes = append(s.Attributes,
				sdpmodel.Attribute{Name: "setup", Value: "passive"},
				sdpmodel.Attribute{Name: "connection", Value: "new"})
		}
		call.AddStream(s)

		ports := m.cfg.Ports.forMediaType(s.MediaType, s.ID)
		h, err := m.backend.CreateStream(ctx, call.CallID(), s.ID, s.MediaType, ports, call.ICEVersion().String())
		if err != nil {
			m.fail(call.CallID(), callerr.BackendFailure("create stream", err))
			return
		}
		s.Handle = h
	}

	call.PendingRemoteMessage = msg

	_ = tx.Respond(sip.NewResponseFromRequest(req, 180, "Ringing", nil))
	// Further work resumes from StreamInitialised once the backend
	// reports every new stream ready (§4.4).
}

func mediaTypeForSection(name string) string {
	switch name {
	case "audio", "video":
		return name
	default:
		return "application"
	}
}

func isSelfLoop(req *sip.Request, selfURI string) bool {
	if selfURI == "" {
		return false
	}
	return strings.Contains(req.Recipient.String(), selfURI) && strings.Contains(req.From().Address.String(), selfURI)
}

// sendInviteResponseIfReady implements spec.md §4.4: gated on local
// accept and every stream being initialised. Rejects with 488 on
// encryption incompatibility, otherwise answers 200 OK with the
// serialised SDP.
func (m *Manager) sendInviteResponseIfReady(ctx context.Context, call *Call) {
	if !call.readyForResponse() {
		return
	}

	if !m.encryptionCompatible(call) {
		m.respondEncryptionIncompatible(call)
		return
	}

	body, err := m.serializeOffer(call)
	if err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryBackend, "SDP error", "failed to serialise answer", err))
		return
	}

	req, ok := call.InboundInvite.(*sip.Request)
	if !ok {
		return
	}
	resp := call.Session.CreateResponse(req, 200, "OK")
	resp.SetBody(body)
	resp.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	if err := m.respondToInvite(call, resp); err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryTransport, "Send failed", "could not send 200 OK", err))
		return
	}
	call.InboundInvite = nil
}

// encryptionCompatible is the inbound counterpart of §4.4.1: false
// when any remote section rejected encryption while our policy
// requires it (already folded into call.EncryptionCompatible by
// applyRemoteMessage), or when this call's flag was otherwise cleared.
func (m *Manager) encryptionCompatible(call *Call) bool {
	return call.EncryptionCompatible
}

func (m *Manager) respondEncryptionIncompatible(call *Call) {
	req, ok := call.InboundInvite.(*sip.Request)
	if ok {
		resp := call.Session.CreateResponse(req, 488, "Encryption Levels not compatible")
		resp.AppendHeader(sip.NewHeader("Warning", `308 lcs.microsoft.com "Encryption Levels not compatible"`))
		_ = m.respondToInvite(call, resp)
	}
	call.InboundInvite = nil
	for _, s := range call.Streams() {
		if s.Handle != nil {
			_ = m.backend.Reject(s.Handle)
		}
	}
	m.fail(call.CallID(), callerr.EncryptionRejectedInbound())
}

// respondToInvite sends the single final response for an inbound
// INVITE (§3 invariant 4), looked up by Call-ID on the transport layer
// since the server transaction was handed off long before
// stream-initialised resumes this call.
func (m *Manager) respondToInvite(call *Call, resp *sip.Response) error {
	return m.transport.RespondInTransaction(call.CallID(), resp)
}
