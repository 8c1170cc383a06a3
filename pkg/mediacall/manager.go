package mediacall

import (
	"context"
	"fmt"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/callerr"
	"github.com/ocsphone/mediacall/pkg/dialog"
	"github.com/ocsphone/mediacall/pkg/logging"
	"github.com/ocsphone/mediacall/pkg/metrics"
	"github.com/ocsphone/mediacall/pkg/registry"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
	"github.com/rs/zerolog"
)

// PortRanges holds the media-type-specific gather ranges of spec.md
// §4.4 ("separate ranges for audio, video, file-transfer data, and
// applicationsharing — fall back to a general range otherwise").
type PortRanges struct {
	Audio               backend.PortRange
	Video               backend.PortRange
	Data                backend.PortRange
	ApplicationSharing  backend.PortRange
	General             backend.PortRange
}

func (r PortRanges) forMediaType(mediaType, streamID string) backend.PortRange {
	switch {
	case streamID == "data":
		return r.Data
	case streamID == "applicationsharing":
		return r.ApplicationSharing
	case mediaType == "audio":
		return r.Audio
	case mediaType == "video":
		return r.Video
	default:
		return r.General
	}
}

// Config is the process-wide state of spec.md §6 ("Process-wide
// state"): self URI, server's default encryption policy, OCS2007/
// Lync2013 flags, test-call bot URI, and per-media-type port ranges.
type Config struct {
	SelfURI                 string
	ServerDefaultEncryption sdpmodel.EncryptionPolicy
	EffectiveEncryption     sdpmodel.EncryptionPolicy
	OCS2007                 bool
	Lync2013                bool
	TestCallBotURI          string
	Ports                   PortRanges
	UnifiedCommLineURI      string // P-Preferred-Identity, if configured
	UserAgent               string
}

// Manager is the media-call core: it consumes the registry, the
// dialog transport, and the backend, and implements backend.Core to
// receive host events (spec.md §6 "Host events delivered into the
// core"). One Manager exists per signed-in session (spec.md §9: "no
// hidden globals" — this is a constructed value, not package state).
type Manager struct {
	cfg       Config
	registry  *registry.Registry
	transport *dialog.Transport
	backend   backend.MediaBackend
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

// New builds a Manager. log and m may be zero values (logging.Nop(),
// nil) for tests that don't care about observability.
func New(cfg Config, reg *registry.Registry, transport *dialog.Transport, be backend.MediaBackend, log zerolog.Logger, m *metrics.Metrics) *Manager {
	mgr := &Manager{cfg: cfg, registry: reg, transport: transport, backend: be, log: log, metrics: m}
	transport.OnInvite(mgr.onInviteRequest)
	transport.OnCancel(mgr.onCancelRequest)
	transport.OnBye(mgr.onByeRequest)
	return mgr
}

func (m *Manager) callLog(callID string) zerolog.Logger {
	return logging.ForCall(m.log, callID)
}

// lookupCall is a small typed wrapper over the registry, since
// registry.Call is satisfied by *Call but Lookup returns the
// interface.
func (m *Manager) lookupCall(callID string) (*Call, bool) {
	c, ok := m.registry.Lookup(callID)
	if !ok {
		return nil, false
	}
	call, ok := c.(*Call)
	return call, ok
}

func (m *Manager) fail(callID string, err *callerr.CallError) {
	m.callLog(callID).Error().Err(err).Str("category", fmt.Sprint(err.Category)).Msg("call failed")
	if m.metrics != nil {
		m.metrics.CallsFailed.WithLabelValues(err.Title).Inc()
	}
	if call, ok := m.lookupCall(callID); ok {
		_ = call.Fire("terminate")
		for _, s := range call.Streams() {
			if s.Handle != nil {
				_ = m.backend.HangUp(s.Handle)
			}
		}
		m.registry.Remove(callID)
		_ = call.Fire("terminated")
	}
}

// --- backend.Core ---

// StreamInitialised is spec.md §4.4's "stream-initialised callback":
// if outbound, this first sends the INVITE; if inbound, it applies
// the stored remote SDP then gates on send_invite_response_if_ready.
func (m *Manager) StreamInitialised(callID, streamID string, h backend.StreamHandle) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	if s, ok := call.Stream(streamID); ok {
		s.Handle = h
	}
	if !call.MarkStreamInitialised() {
		return
	}

	if call.Initiator() {
		m.sendInitialInvite(context.Background(), call)
		return
	}

	if call.PendingRemoteMessage != nil {
		msg := call.PendingRemoteMessage
		call.PendingRemoteMessage = nil
		if err := m.applyRemoteMessage(call, msg); err != nil {
			m.fail(callID, err)
			return
		}
	}
	m.sendInviteResponseIfReady(context.Background(), call)
}

// CandidatePairEstablished is spec.md §4.4's candidate-pair-established:
// the initiator sends a re-offer INVITE committing the chosen pair,
// whose response finalises the Established transition.
func (m *Manager) CandidatePairEstablished(callID, streamID string) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	if !call.Initiator() {
		return
	}
	m.sendFinalisingReinvite(context.Background(), call)
}

// StreamEnd removes the stream and, if no streams remain, tears the
// call down.
func (m *Manager) StreamEnd(callID, streamID string) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	call.RemoveStream(streamID)
	if call.StreamCount() == 0 {
		m.teardown(call)
	}
}

// MediaEnd tears the whole call down; the backend has already freed
// its media resources.
func (m *Manager) MediaEnd(callID string) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	m.teardown(call)
}

// ReadAvailable does nothing: read-available events are not forwarded
// to the file-transfer overlay or to any other layer, and nothing is
// dispatched through Stream.Overlay.
func (m *Manager) ReadAvailable(callID, streamID string) {}

func (m *Manager) Accepted(callID string) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	call.Accept()
	m.sendInviteResponseIfReady(context.Background(), call)
}

func (m *Manager) Rejected(callID string) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	m.rejectInbound(context.Background(), call, 603, "Decline")
}

func (m *Manager) HoldRequested(callID string, hold bool) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	_ = m.SetHold(context.Background(), call, hold)
}

func (m *Manager) HangupRequested(callID string) {
	call, ok := m.lookupCall(callID)
	if !ok {
		return
	}
	_ = m.HangUp(context.Background(), call)
}

func (m *Manager) Error(callID string, err error) {
	m.fail(callID, callerr.Wrap(callerr.CategoryTransport, "Media error", err.Error(), err))
}

func (m *Manager) teardown(call *Call) {
	_ = call.Fire("terminate")
	for _, s := range call.Streams() {
		if s.Handle != nil {
			_ = m.backend.HangUp(s.Handle)
		}
	}
	m.registry.Remove(call.CallID())
	_ = call.Fire("terminated")
	if m.metrics != nil {
		m.metrics.ActiveCalls.Set(float64(m.registry.Len()))
	}
}

// --- dialog-layer request dispatch ---

func (m *Manager) onByeRequest(req *sip.Request, tx sip.ServerTransaction) {
	callID := req.CallID().Value()
	call, ok := m.lookupCall(callID)
	resp := sip.NewResponseFromRequest(req, 200, "OK", nil)
	_ = tx.Respond(resp)
	if !ok {
		return
	}
	m.teardown(call)
}
