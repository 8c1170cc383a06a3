package mediacall

import (
	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/registry"
)

// SignOut implements spec.md §4.4's closing paragraph: on going
// offline, every inbound call not yet accepted gets 480 Temporarily
// Unavailable, every other call's session is closed, and every call's
// backend media is hung up regardless.
func (m *Manager) SignOut() {
	var calls []*Call
	m.registry.Each(func(c registry.Call) {
		if call, ok := c.(*Call); ok {
			calls = append(calls, call)
		}
	})

	for _, call := range calls {
		if !call.Initiator() && !call.isAccepted() {
			if req, ok := call.InboundInvite.(*sip.Request); ok {
				resp := call.Session.CreateResponse(req, 480, "Temporarily Unavailable")
				_ = m.respondToInvite(call, resp)
			}
		}
		m.teardown(call)
	}
}
