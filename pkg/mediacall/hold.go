package mediacall

import (
	"context"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/callerr"
)

// SetHold implements spec.md §4.4's "Hold/unhold": toggles every
// stream's held flag and sends a re-INVITE carrying a=inactive.
// Idempotent per §8 invariant 8: a repeated set-held(true) on an
// already-held call produces no additional wire traffic.
func (m *Manager) SetHold(ctx context.Context, call *Call, hold bool) error {
	changed := false
	for _, s := range call.Streams() {
		if s.Held == hold {
			continue
		}
		s.Held = hold
		if s.Handle != nil {
			_ = m.backend.SetHeld(s.Handle, hold)
		}
		changed = true
	}
	if !changed {
		return nil
	}

	if err := call.Fire("reinvite"); err != nil {
		return err
	}

	body, err := m.serializeOffer(call)
	if err != nil {
		_ = call.Fire("reinvite-failed")
		return err
	}
	tx, err := m.transport.SendReInvite(ctx, call.Session, body)
	if err != nil {
		_ = call.Fire("reinvite-failed")
		return err
	}
	go m.watchHoldReinviteResponses(call, tx)
	return nil
}

func (m *Manager) watchHoldReinviteResponses(call *Call, tx sip.ClientTransaction) {
	for {
		select {
		case resp, ok := <-tx.Responses():
			if !ok {
				return
			}
			if resp.StatusCode >= 100 && resp.StatusCode < 200 {
				continue
			}
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				ackReq, err := call.Session.BuildACK()
				if err == nil {
					ackReq.RemoveHeader("CSeq")
					ackReq.AppendHeader(&sip.CSeqHeader{SeqNo: resp.CSeq().SeqNo, MethodName: sip.ACK})
					_ = m.transport.WriteRequest(ackReq)
				}
				_ = call.Fire("reinvite-done")
			} else {
				_ = call.Fire("reinvite-failed")
			}
			return
		case <-tx.Done():
			_ = call.Fire("reinvite-failed")
			return
		}
	}
}

// HangUp implements the local "hang up" path of §4.4: send BYE (if
// established) or CANCEL (if still offering), reject backend media,
// and tear the call down.
func (m *Manager) HangUp(ctx context.Context, call *Call) error {
	switch call.State() {
	case StateEstablished, StateReinviting:
		if _, err := m.transport.SendBye(ctx, call.Session); err != nil {
			m.teardown(call)
			return err
		}
	case StateLocalOffering:
		if _, err := m.transport.SendCancel(ctx, call.Session); err != nil {
			m.teardown(call)
			return err
		}
	}
	m.teardown(call)
	return nil
}

// rejectInbound implements the local "reject" path for an inbound
// call not yet accepted: a single final response carrying code/reason
// and backend media rejection (§4.4, §3 invariant 4).
func (m *Manager) rejectInbound(ctx context.Context, call *Call, code int, reason string) error {
	req, ok := call.InboundInvite.(*sip.Request)
	if ok {
		resp := call.Session.CreateResponse(req, code, reason)
		_ = m.respondToInvite(call, resp)
	}
	call.InboundInvite = nil
	for _, s := range call.Streams() {
		if s.Handle != nil {
			_ = m.backend.Reject(s.Handle)
		}
		call.RemoveStream(s.ID)
	}
	m.fail(call.CallID(), callerr.New(callerr.CategoryPeerDeclined, "Call rejected", reason))
	return nil
}
