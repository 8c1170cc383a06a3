package mediacall

import (
	"context"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/callerr"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
)

// onReinvite handles a re-INVITE on an already-known call: remote
// hold/unhold (a=inactive present/absent) and codec/candidate
// renegotiation, applied the same way the initial offer is (§4.4
// apply_remote_message), answered with a fresh 200 OK carrying the
// current local SDP.
func (m *Manager) onReinvite(ctx context.Context, call *Call, req *sip.Request, tx sip.ServerTransaction) {
	msg, err := sdpmodel.Parse(req.Body())
	if err != nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		return
	}

	if err := call.Fire("reinvite"); err != nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 500, "Server Internal Error", nil))
		return
	}

	if cerr := m.applyRemoteMessage(call, msg); cerr != nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 488, "Not Acceptable Here", nil))
		_ = call.Fire("reinvite-failed")
		m.fail(call.CallID(), cerr)
		return
	}

	body, err := m.serializeOffer(call)
	if err != nil {
		_ = tx.Respond(sip.NewResponseFromRequest(req, 500, "Server Internal Error", nil))
		_ = call.Fire("reinvite-failed")
		m.fail(call.CallID(), callerr.Wrap(callerr.CategoryBackend, "SDP error", "failed to serialise answer", err))
		return
	}

	resp := call.Session.CreateResponse(req, 200, "OK")
	resp.SetBody(body)
	resp.AppendHeader(sip.NewHeader("Content-Type", "application/sdp"))
	_ = tx.Respond(resp)
	_ = call.Fire("reinvite-done")
}
