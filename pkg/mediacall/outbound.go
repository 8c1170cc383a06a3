package mediacall

import (
	"context"
	"fmt"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/callerr"
	"github.com/ocsphone/mediacall/pkg/dialog"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
)

// StreamRequest describes one stream the host wants on an outbound
// call.
type StreamRequest struct {
	ID        string
	MediaType string
}

// StartOutboundCall implements spec.md §4.4's "Outbound call start":
// refuses a second audio call, creates the dialog/call, allocates
// every requested stream, and waits for backend stream-initialised
// callbacks before sending INVITE (from StreamInitialised).
func (m *Manager) StartOutboundCall(ctx context.Context, remoteURI sip.Uri, streams []StreamRequest) (*Call, error) {
	if wantsAudio(streams) && m.registry.HasAudioCall() {
		return nil, callerr.New(callerr.CategoryBackend, "Call refused", "an audio call is already active")
	}

	var selfURI sip.Uri
	if err := sip.ParseUri(m.cfg.SelfURI, &selfURI); err != nil {
		return nil, fmt.Errorf("mediacall: invalid self URI: %w", err)
	}
	contact := sip.ContactHeader{Address: selfURI}

	session := dialog.NewOutboundSession(selfURI, remoteURI, contact, m.cfg.UserAgent)
	call := NewOutboundCall(session, remoteURI.String(), sdpmodel.ICERFC5245, m.cfg.EffectiveEncryption)

	if !m.registry.Add(call) {
		return nil, fmt.Errorf("mediacall: duplicate Call-ID %s", call.CallID())
	}
	_ = call.Fire("start-outbound")

	for _, sr := range streams {
		s := &Stream{ID: sr.ID, MediaType: sr.MediaType}
		call.AddStream(s)
		ports := m.cfg.Ports.forMediaType(sr.MediaType, sr.ID)
		h, err := m.backend.CreateStream(ctx, call.CallID(), sr.ID, sr.MediaType, ports, call.ICEVersion().String())
		if err != nil {
			m.registry.Remove(call.CallID())
			return nil, callerr.BackendFailure("create stream", err)
		}
		s.Handle = h
	}

	return call, nil
}

func wantsAudio(streams []StreamRequest) bool {
	for _, s := range streams {
		if s.ID == "audio" || s.MediaType == "audio" {
			return true
		}
	}
	return false
}

// sendInitialInvite serialises the SDP offer and sends the INVITE,
// attaching process_invite_call_response equivalent as the
// transaction's response handler (§4.4).
func (m *Manager) sendInitialInvite(ctx context.Context, call *Call) {
	body, err := m.serializeOffer(call)
	if err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryBackend, "SDP error", "failed to serialise offer", err))
		return
	}
	call.PendingOutboundBody = body

	req := call.Session.BuildInvite(body)
	req.AppendHeader(sip.NewHeader("ms-keep-alive", "UAC;hop-hop=yes"))
	if m.cfg.UnifiedCommLineURI != "" {
		req.AppendHeader(sip.NewHeader("P-Preferred-Identity", m.cfg.UnifiedCommLineURI))
	}
	if call.ICEVersion() == sdpmodel.ICERFC5245 && req.CSeq().SeqNo == 1 && m.cfg.TestCallBotURI != call.RemoteURI() {
		req.SetBody(appendFallbackMultipart(body))
		req.AppendHeader(sip.NewHeader("Content-Type", `multipart/alternative; boundary="fallback-boundary"`))
	}

	tx, err := m.transport.TransactionRequest(ctx, req)
	if err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryTransport, "Send failed", "could not send INVITE", err))
		return
	}
	go m.watchInviteResponses(call, req.CSeq().SeqNo, tx)
}

// appendFallbackMultipart wraps body with an empty m=audio
// alternative so legacy 2007 proxies can still parse something
// (§4.4: "fallback multipart body ... first-time ICEv19 non-test
// calls").
func appendFallbackMultipart(body []byte) []byte {
	const boundary = "fallback-boundary"
	out := "--" + boundary + "\r\nContent-Type: application/sdp\r\n\r\n" + string(body) + "\r\n"
	out += "--" + boundary + "\r\nContent-Type: application/sdp\r\n\r\nv=0\r\nm=audio 0 RTP/AVP 0\r\n"
	out += "--" + boundary + "--\r\n"
	return []byte(out)
}

func (m *Manager) watchInviteResponses(call *Call, cseq uint32, tx sip.ClientTransaction) {
	for {
		select {
		case resp, ok := <-tx.Responses():
			if !ok {
				return
			}
			if resp.StatusCode >= 100 && resp.StatusCode < 200 {
				continue
			}
			m.onInviteResponse(call, cseq, resp)
			return
		case <-tx.Done():
			return
		}
	}
}

// onInviteResponse implements spec.md §4.4's "Response handling for
// outbound INVITE".
func (m *Manager) onInviteResponse(call *Call, cseq uint32, resp *sip.Response) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		m.onInviteSuccess(call, resp)
		return
	}

	diag := callerr.ParseDiagnostics(headerValue(resp, "ms-diagnostics"))
	clientDiag := callerr.ParseDiagnostics(headerValue(resp, "ms-client-diagnostics"))
	msWarn := parseWarningCode(headerValue(resp, "Warning"))

	outcome := callerr.FromResponse(resp.StatusCode, resp.Reason, diag, clientDiag, cseq, msWarn)
	if outcome.RetryICE {
		m.retryWithOtherICE(call)
		return
	}
	m.fail(call.CallID(), outcome.Err)
}

// retryWithOtherICE hangs up the existing call and starts a fresh one
// to the same URI under the alternative ICE version (§4.4, §8
// invariant 1).
func (m *Manager) retryWithOtherICE(call *Call) {
	otherICE := call.ICEVersion().Other()
	remote := call.RemoteURI()
	streams := make([]StreamRequest, 0, len(call.Streams()))
	for _, s := range call.Streams() {
		streams = append(streams, StreamRequest{ID: s.ID, MediaType: s.MediaType})
	}

	m.teardown(call)
	if m.metrics != nil {
		m.metrics.ICERetries.Inc()
	}

	var uri sip.Uri
	if err := sip.ParseUri(remote, &uri); err != nil {
		return
	}
	retried, err := m.StartOutboundCall(context.Background(), uri, streams)
	if err != nil {
		return
	}
	retried.SetICEVersion(otherICE)
}

func (m *Manager) onInviteSuccess(call *Call, resp *sip.Response) {
	msg, err := sdpmodel.Parse(resp.Body())
	if err != nil {
		m.fail(call.CallID(), callerr.MalformedSDP(err))
		return
	}
	if err := m.applyRemoteMessage(call, msg); err != nil {
		m.fail(call.CallID(), err)
		return
	}
	call.Session.ApplyProvisionalOrFinal(resp)

	// ACK using the dialog's current cseq minus one: buildRequest bumps
	// localSeq on every call, so the ACK for this INVITE must reuse the
	// INVITE's own CSeq rather than advancing further (§4.4).
	ackReq, err := call.Session.BuildACK()
	if err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryTransport, "ACK failed", "could not build ACK", err))
		return
	}
	ackReq.RemoveHeader("CSeq")
	ackReq.AppendHeader(&sip.CSeqHeader{SeqNo: resp.CSeq().SeqNo, MethodName: sip.ACK})
	if err := m.transport.WriteRequest(ackReq); err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryTransport, "ACK failed", "could not send ACK", err))
		return
	}
	// Established transition and backend accept happen once the
	// candidate pair is confirmed live (CandidatePairEstablished).
}

// sendFinalisingReinvite is spec.md §4.4's
// "candidate-pair-established": the initiator sends a re-offer
// committing the chosen candidates; its own success response finishes
// the Established transition and accepts the backend media.
func (m *Manager) sendFinalisingReinvite(ctx context.Context, call *Call) {
	body, err := m.serializeOffer(call)
	if err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryBackend, "SDP error", "failed to serialise final offer", err))
		return
	}
	tx, err := m.transport.SendReInvite(ctx, call.Session, body)
	if err != nil {
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryTransport, "Send failed", "could not send final re-INVITE", err))
		return
	}
	go m.watchFinalAckResponses(call, tx)
}

func (m *Manager) watchFinalAckResponses(call *Call, tx sip.ClientTransaction) {
	for {
		select {
		case resp, ok := <-tx.Responses():
			if !ok {
				return
			}
			if resp.StatusCode >= 100 && resp.StatusCode < 200 {
				continue
			}
			m.sipeMediaSendFinalAck(call, resp)
			return
		case <-tx.Done():
			return
		}
	}
}

// sipeMediaSendFinalAck finalises the transition to Established and
// accepts the backend media, named after the source's own callback
// (§4.4).
func (m *Manager) sipeMediaSendFinalAck(call *Call, resp *sip.Response) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.fail(call.CallID(), callerr.New(callerr.CategoryPeerDeclined, "Call failed", "final re-offer rejected"))
		return
	}
	ackReq, err := call.Session.BuildACK()
	if err == nil {
		ackReq.RemoveHeader("CSeq")
		ackReq.AppendHeader(&sip.CSeqHeader{SeqNo: resp.CSeq().SeqNo, MethodName: sip.ACK})
		_ = m.transport.WriteRequest(ackReq)
	}
	if err := call.Fire("establish"); err != nil {
		return
	}
	for _, s := range call.Streams() {
		if s.Handle != nil {
			_ = m.backend.Accept(s.Handle)
		}
	}
	if m.metrics != nil {
		m.metrics.CallsEstablished.Inc()
		m.metrics.ActiveCalls.Set(float64(m.registry.Len()))
	}
}

func headerValue(resp *sip.Response, name string) string {
	if h := resp.GetHeader(name); h != nil {
		return h.Value()
	}
	return ""
}

// parseWarningCode extracts the leading numeric code of a Warning
// header (e.g. "391 ..." from `480` responses per §4.4).
func parseWarningCode(warning string) int {
	if warning == "" {
		return 0
	}
	var code int
	_, _ = fmt.Sscanf(warning, "%d", &code)
	return code
}
