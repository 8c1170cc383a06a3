// Package mediacall implements the signalling state machine of
// spec.md §4.4, the hardest subsystem of the media-call core: INVITE/
// response/ACK/CANCEL/BYE flow, ICE and encryption retry, hold/unhold,
// and the call & stream registry data model of §3.
package mediacall

import (
	"sync"

	"github.com/looplab/fsm"
	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/dialog"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
)

// OverlayKind tags the opaque per-stream payload a higher layer (only
// the file-transfer overlay today) attaches to a stream, replacing
// the source's void-pointer-plus-destructor idiom per spec.md §9.
type OverlayKind int

const (
	OverlayNone OverlayKind = iota
	OverlayFileTransfer
)

// Overlay is a tagged variant: Kind says which field is meaningful.
type Overlay struct {
	Kind        OverlayKind
	FileTransfer interface{} // *filetransfer.Transfer, kept as interface{} to avoid an import cycle
}

// Stream is spec.md §3's Stream record: one media direction-pair
// inside a call.
type Stream struct {
	ID        string
	MediaType string // audio|video|application
	SRTPKey   *backend.SRTPKey
	RemoteKeyID int

	// RemoteSet transitions false→true exactly once (§3 invariant 3).
	RemoteSet bool
	Held      bool
	Failed    bool

	Attributes []sdpmodel.Attribute
	Overlay    Overlay

	Handle backend.StreamHandle
}

// EncryptionActive is the derived property of spec.md §4.4.1 /
// §8 invariant 4: true iff a local key exists, the call's
// compatibility flag holds, the stream is remote-set, and policy is
// not rejected.
func (s *Stream) EncryptionActive(callCompatible bool, policy sdpmodel.EncryptionPolicy) bool {
	return s.SRTPKey != nil && callCompatible && s.RemoteSet && policy != sdpmodel.EncryptionRejected
}

// State is one of the seven signalling states of spec.md §4.4.
type State string

const (
	StateIdle           State = "Idle"
	StateLocalOffering   State = "LocalOffering"
	StateRemoteOffering  State = "RemoteOffering"
	StateEstablished     State = "Established"
	StateReinviting      State = "Reinviting"
	StateTerminating     State = "Terminating"
	StateTerminated      State = "Terminated"
)

// Call is spec.md §3's Call record plus the bookkeeping the state
// machine needs to drive it.
type Call struct {
	mu sync.Mutex

	callID      string
	remoteURI   string
	iceVersion  sdpmodel.ICEVersion
	initiator   bool

	// EncryptionCompatible starts true on each fresh INVITE/response
	// and is cleared when a remote "rejected" meets a local "required"
	// (§4.4.1).
	EncryptionCompatible bool
	EncryptionPolicy     sdpmodel.EncryptionPolicy

	// PendingOutboundBody is the SDP the core is about to send, kept so
	// a retry can reuse the offer shape.
	PendingOutboundBody []byte

	// InboundInvite is kept until the single final response is sent
	// (§3 invariant 4).
	InboundInvite *dialogRequest

	// PendingRemoteMessage is the last-received remote SDP awaiting
	// apply_remote_message, once every stream the offer describes is
	// initialised.
	PendingRemoteMessage *sdpmodel.Message

	streams map[string]*Stream
	order   []string // insertion order, for deterministic SDP serialisation

	// FailedSections accumulates sections the core refused or could
	// not activate (§3); they are echoed back with port 0 forever
	// (§8 invariant 5).
	FailedSections []sdpmodel.MediaSection

	Session *dialog.Session
	fsm     *fsm.FSM

	// awaitingStreams counts streams not yet reported initialised by
	// the backend, gating send_invite_response_if_ready / the initial
	// outbound INVITE.
	awaitingStreams int
	accepted        bool // local accept decision has been made (UAS)
}

// dialogRequest is the minimal shape InboundInvite needs; defined
// here rather than importing sip directly into every file that
// touches Call.
type dialogRequest = interface{}

// NewOutboundCall starts a Call record for an outbound request
// (spec.md §4.4 "Outbound call start").
func NewOutboundCall(session *dialog.Session, remoteURI string, iceVersion sdpmodel.ICEVersion, policy sdpmodel.EncryptionPolicy) *Call {
	c := &Call{
		callID:               session.CallID,
		remoteURI:            remoteURI,
		iceVersion:           iceVersion,
		initiator:            true,
		EncryptionCompatible: true,
		EncryptionPolicy:     policy,
		streams:              make(map[string]*Stream),
		Session:              session,
	}
	c.initFSM(StateIdle)
	return c
}

// NewInboundCall starts a Call record for an inbound INVITE.
func NewInboundCall(session *dialog.Session, remoteURI string, iceVersion sdpmodel.ICEVersion, policy sdpmodel.EncryptionPolicy) *Call {
	c := &Call{
		callID:               session.CallID,
		remoteURI:            remoteURI,
		iceVersion:           iceVersion,
		initiator:            false,
		EncryptionCompatible: true,
		EncryptionPolicy:     policy,
		streams:              make(map[string]*Stream),
		Session:              session,
	}
	c.initFSM(StateIdle)
	return c
}

// CallID satisfies pkg/registry.Call.
func (c *Call) CallID() string { return c.callID }

// HasStream satisfies pkg/registry.Call and spec.md §4.2's "is there
// already a voice call?" scan.
func (c *Call) HasStream(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.streams[id]
	return ok
}

// RemoteURI, ICEVersion, Initiator, State are simple accessors.
func (c *Call) RemoteURI() string           { return c.remoteURI }
func (c *Call) ICEVersion() sdpmodel.ICEVersion { return c.iceVersion }
func (c *Call) Initiator() bool             { return c.initiator }
func (c *Call) State() State                { return State(c.fsm.Current()) }

// AddStream registers a new stream on the call (§3: "created when
// adding a local stream or when an inbound INVITE describes a new
// media section with non-zero port"). Returns false if id is already
// present (§3 invariant 2).
func (c *Call) AddStream(s *Stream) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.streams[s.ID]; exists {
		return false
	}
	c.streams[s.ID] = s
	c.order = append(c.order, s.ID)
	c.awaitingStreams++
	return true
}

// Stream looks up a stream by id.
func (c *Call) Stream(id string) (*Stream, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[id]
	return s, ok
}

// Streams returns streams in insertion order.
func (c *Call) Streams() []*Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Stream, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.streams[id])
	}
	return out
}

// RemoveStream deletes a stream, typically once the backend reports
// stream-end or the section was marked failed.
func (c *Call) RemoveStream(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.streams[id]; !ok {
		return
	}
	delete(c.streams, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// StreamCount reports how many streams remain, used by the "every
// section failed, end the call" rule (§4.4 apply_remote_message).
func (c *Call) StreamCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// MarkStreamInitialised decrements the await counter; returns true
// once every requested stream has reported in.
func (c *Call) MarkStreamInitialised() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.awaitingStreams > 0 {
		c.awaitingStreams--
	}
	return c.awaitingStreams == 0
}

// Accept records that the local side has decided to accept an
// inbound call, one of the two send_invite_response_if_ready gates.
func (c *Call) Accept() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accepted = true
}

func (c *Call) isAccepted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted
}

func (c *Call) readyForResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accepted && c.awaitingStreams == 0
}

// AppendFailedSection records a section the core refused or could not
// activate (§3, §8 invariant 5): it will be echoed with port 0 in
// every subsequent SDP from this call.
func (c *Call) AppendFailedSection(sec sdpmodel.MediaSection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec.Port = 0
	c.FailedSections = append(c.FailedSections, sec)
}

// SetICEVersion switches the call's negotiated ICE dialect, used when
// retrying under the alternative version (§4.4 response handling).
func (c *Call) SetICEVersion(v sdpmodel.ICEVersion) { c.iceVersion = v }
