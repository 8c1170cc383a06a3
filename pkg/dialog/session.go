package dialog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/emiago/sipgo/sip"
)

// Session carries the RFC 3261 §12 dialog identifiers and sequencing
// state a single mediacall.Call needs to build correctly-tagged
// requests. It intentionally has no notion of call state — Idle,
// Established, Terminated and so on belong to pkg/mediacall's FSM.
type Session struct {
	CallID    string
	LocalTag  string
	RemoteTag string
	LocalURI  sip.Uri
	RemoteURI sip.Uri

	// RemoteTarget is the Request-URI for in-dialog requests, taken
	// from the peer's Contact header once known.
	RemoteTarget sip.Uri
	RouteSet     []sip.Uri
	Contact      sip.ContactHeader
	UserAgent    string
	IsUAC        bool

	localSeq  uint32
	remoteSeq uint32

	// inviteReq is the original INVITE, kept to build ACK/CANCEL and
	// to recover the Request-URI before a Contact is known.
	inviteReq *sip.Request
}

// NewCallID and NewTag are overridable for deterministic tests,
// grounded on the teacher's newTag/newCallId indirection
// (pkg/dialog/uacuas.go).
var (
	NewCallID = func() string { return sip.RandString(32) }
	NewTag    = func() string { return sip.RandString(8) }
)

func generateBranch() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return "z9hG4bK" + hex.EncodeToString(b)
}

// NewOutboundSession starts a UAC session: a fresh Call-ID and local
// tag, no remote tag until the first response arrives.
func NewOutboundSession(from, to sip.Uri, contact sip.ContactHeader, userAgent string) *Session {
	return &Session{
		CallID:    NewCallID(),
		LocalTag:  NewTag(),
		LocalURI:  from,
		RemoteURI: to,
		Contact:   contact,
		UserAgent: userAgent,
		IsUAC:     true,
	}
}

// NewInboundSession starts a UAS session from a received INVITE,
// picking a local tag for the eventual response's To header.
func NewInboundSession(req *sip.Request, contact sip.ContactHeader, userAgent string) *Session {
	s := &Session{
		CallID:    req.CallID().Value(),
		LocalTag:  NewTag(),
		RemoteTag: req.From().Params["tag"],
		LocalURI:  req.To().Address,
		RemoteURI: req.From().Address,
		Contact:   contact,
		UserAgent: userAgent,
		IsUAC:     false,
		inviteReq: req,
	}
	s.remoteSeq = req.CSeq().SeqNo
	return s
}

func (s *Session) nextSeq() uint32 {
	return atomic.AddUint32(&s.localSeq, 1)
}

// ApplyProvisionalOrFinal updates RemoteTag/RemoteTarget from a
// UAC-side response once known (spec.md §3 dialog identifiers).
func (s *Session) ApplyProvisionalOrFinal(resp *sip.Response) {
	if tag, ok := resp.To().Params["tag"]; ok && tag != "" {
		s.RemoteTag = tag
	}
	if c := resp.GetHeader("Contact"); c != nil {
		var u sip.Uri
		if err := sip.ParseUri(stripAngles(c.Value()), &u); err == nil {
			s.RemoteTarget = u
		}
	}
}

func stripAngles(v string) string {
	if len(v) >= 2 && v[0] == '<' && v[len(v)-1] == '>' {
		return v[1 : len(v)-1]
	}
	return v
}

// buildRequest builds an in-dialog request with correctly ordered
// From/To tags depending on UAC/UAS role (grounded on the teacher's
// buildRequest, pkg/dialog/dialog_internal.go).
func (s *Session) buildRequest(method sip.RequestMethod) (*sip.Request, error) {
	target := s.RemoteTarget
	if target.Host == "" {
		if s.inviteReq == nil {
			return nil, fmt.Errorf("dialog: no remote target for %s", method)
		}
		target = s.inviteReq.Recipient
	}

	req := sip.NewRequest(method, target)
	req.AppendHeader(sip.NewHeader("Call-ID", s.CallID))

	var fromTag, toTag string
	var fromURI, toURI sip.Uri
	if s.IsUAC {
		fromTag, toTag = s.LocalTag, s.RemoteTag
		fromURI, toURI = s.LocalURI, s.RemoteURI
	} else {
		fromTag, toTag = s.RemoteTag, s.LocalTag
		fromURI, toURI = s.RemoteURI, s.LocalURI
	}

	req.AppendHeader(&sip.FromHeader{Address: fromURI, Params: sip.HeaderParams{"tag": fromTag}})
	toParams := sip.HeaderParams{}
	if toTag != "" {
		toParams["tag"] = toTag
	}
	req.AppendHeader(&sip.ToHeader{Address: toURI, Params: toParams})

	req.AppendHeader(&sip.CSeqHeader{SeqNo: s.nextSeq(), MethodName: method})
	req.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	req.AppendHeader(&s.Contact)
	for _, route := range s.RouteSet {
		req.AppendHeader(&sip.RouteHeader{Address: route})
	}
	if s.UserAgent != "" {
		req.AppendHeader(sip.NewHeader("User-Agent", s.UserAgent))
	}
	req.AppendHeader(&sip.ViaHeader{ProtocolName: "SIP", ProtocolVersion: "2.0", Transport: "UDP",
		Params: sip.HeaderParams{"branch": generateBranch()}})

	return req, nil
}

// BuildInvite builds the initial INVITE with the given SDP body. The
// initial INVITE has no remote tag yet and its Request-URI is the
// original RemoteURI, so it is built directly rather than through
// buildRequest (which needs an established RemoteTarget or a prior
// INVITE to fall back on).
func (s *Session) BuildInvite(sdpBody []byte) *sip.Request {
	req := sip.NewRequest(sip.INVITE, s.RemoteURI)
	req.AppendHeader(sip.NewHeader("Call-ID", s.CallID))
	req.AppendHeader(&sip.FromHeader{Address: s.LocalURI, Params: sip.HeaderParams{"tag": s.LocalTag}})
	req.AppendHeader(&sip.ToHeader{Address: s.RemoteURI, Params: sip.HeaderParams{}})
	req.AppendHeader(&sip.CSeqHeader{SeqNo: s.nextSeq(), MethodName: sip.INVITE})
	req.AppendHeader(sip.NewHeader("Max-Forwards", "70"))
	req.AppendHeader(&s.Contact)
	if s.UserAgent != "" {
		req.AppendHeader(sip.NewHeader("User-Agent", s.UserAgent))
	}
	req.AppendHeader(&sip.ViaHeader{ProtocolName: "SIP", ProtocolVersion: "2.0", Transport: "UDP",
		Params: sip.HeaderParams{"branch": generateBranch()}})
	if sdpBody != nil {
		req.SetBody(sdpBody)
		req.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	}
	s.inviteReq = req
	return req
}

// BuildACK builds the ACK for a 2xx response to INVITE, sent outside
// any transaction per RFC 3261 §13.2.2.4.
func (s *Session) BuildACK() (*sip.Request, error) {
	return s.buildRequest(sip.ACK)
}

// BuildBye builds an in-dialog BYE.
func (s *Session) BuildBye() (*sip.Request, error) {
	return s.buildRequest(sip.BYE)
}

// BuildInfo builds an in-dialog INFO carrying an arbitrary body, used
// by pkg/filetransfer's control-plane exchange (spec.md §4.5).
func (s *Session) BuildInfo(contentType string, body []byte) (*sip.Request, error) {
	req, err := s.buildRequest(sip.INFO)
	if err != nil {
		return nil, err
	}
	req.SetBody(body)
	req.AppendHeader(sip.NewHeader("Content-Type", contentType))
	return req, nil
}

// BuildReInvite builds a re-INVITE carrying a new SDP offer, used for
// hold/unhold (spec.md §4.4) and codec/candidate renegotiation.
func (s *Session) BuildReInvite(sdpBody []byte) (*sip.Request, error) {
	req, err := s.buildRequest(sip.INVITE)
	if err != nil {
		return nil, err
	}
	req.SetBody(sdpBody)
	req.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	return req, nil
}

// BuildCancel builds the CANCEL for the original INVITE transaction
// (only valid before a final response has been received, §4.4 "CANCEL
// handling").
func (s *Session) BuildCancel() (*sip.Request, error) {
	if s.inviteReq == nil {
		return nil, fmt.Errorf("dialog: no INVITE to cancel")
	}
	req := sip.NewCancelRequest(s.inviteReq)
	return req, nil
}

// CreateResponse builds a response to an inbound request, filling in
// the local tag on first use.
func (s *Session) CreateResponse(req *sip.Request, statusCode int, reason string) *sip.Response {
	resp := sip.NewResponseFromRequest(req, statusCode, reason, nil)
	if to := resp.To(); to != nil && to.Params["tag"] == "" {
		to.Params["tag"] = s.LocalTag
	}
	return resp
}

// SendInvite sends an INVITE as a new client transaction.
func (t *Transport) SendInvite(ctx context.Context, s *Session, sdpBody []byte) (sip.ClientTransaction, error) {
	req := s.BuildInvite(sdpBody)
	return t.TransactionRequest(ctx, req)
}

// SendReInvite sends a re-INVITE as a new client transaction.
func (t *Transport) SendReInvite(ctx context.Context, s *Session, sdpBody []byte) (sip.ClientTransaction, error) {
	req, err := s.BuildReInvite(sdpBody)
	if err != nil {
		return nil, err
	}
	return t.TransactionRequest(ctx, req)
}

// SendAck builds and writes the ACK outside any transaction.
func (t *Transport) SendAck(s *Session) error {
	ack, err := s.BuildACK()
	if err != nil {
		return err
	}
	return t.WriteRequest(ack)
}

// SendBye sends BYE as a new client transaction.
func (t *Transport) SendBye(ctx context.Context, s *Session) (sip.ClientTransaction, error) {
	req, err := s.BuildBye()
	if err != nil {
		return nil, err
	}
	return t.TransactionRequest(ctx, req)
}

// SendInfo sends INFO as a new client transaction.
func (t *Transport) SendInfo(ctx context.Context, s *Session, contentType string, body []byte) (sip.ClientTransaction, error) {
	req, err := s.BuildInfo(contentType, body)
	if err != nil {
		return nil, err
	}
	return t.TransactionRequest(ctx, req)
}

// SendCancel sends CANCEL for the pending INVITE transaction.
func (t *Transport) SendCancel(ctx context.Context, s *Session) (sip.ClientTransaction, error) {
	req, err := s.BuildCancel()
	if err != nil {
		return nil, err
	}
	return t.TransactionRequest(ctx, req)
}
