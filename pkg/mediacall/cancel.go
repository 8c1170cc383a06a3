package mediacall

import (
	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/callerr"
)

// onCancelRequest implements spec.md §4.4's "CANCEL": a CANCEL on a
// call still in RemoteOffering gets 200 OK, and the still-open INVITE
// gets the single 487 it is owed (§3 invariant 4); the backend media
// is rejected and the call torn down.
func (m *Manager) onCancelRequest(req *sip.Request, tx sip.ServerTransaction) {
	callID := req.CallID().Value()
	_ = tx.Respond(sip.NewResponseFromRequest(req, 200, "OK", nil))

	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	if call.State() != StateRemoteOffering {
		return
	}

	_ = m.transport.RespondInTransaction(callID, sip.NewResponseFromRequest(req, 487, "Request Terminated", nil))
	for _, s := range call.Streams() {
		if s.Handle != nil {
			_ = m.backend.Reject(s.Handle)
		}
	}
	m.fail(callID, callerr.New(callerr.CategoryPeerDeclined, "Call cancelled", "caller sent CANCEL before a final response"))
}
