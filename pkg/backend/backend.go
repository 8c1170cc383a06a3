// Package backend declares the host capability interfaces of spec.md
// §6: everything the signalling core consumes from, and delivers
// events into, the host that actually owns sockets, codecs, RTP/RTCP
// and SRTP. The core never touches those resources directly (§5);
// every interaction crosses one of these interfaces.
//
// Callbacks are plain synchronous method calls rather than channels:
// spec.md §5 requires that per-call events from the host are observed
// in delivery order and forbids a callback from reentering the state
// machine for the same call, which a direct call already guarantees
// without adding a queue or goroutine the spec says isn't needed.
package backend

import "context"

// StreamHandle identifies a single media-type-specific stream inside
// the host's media engine, opaque to the core.
type StreamHandle interface{}

// PortRange is a local UDP port range the host should gather
// candidates from for one stream.
type PortRange struct {
	Min int
	Max int
}

// LocalCandidate is what the host reports back after gathering; it is
// converted into the wire model by pkg/mediacall and then normalised
// by pkg/sdpmodel.NormalizeCandidates.
type LocalCandidate struct {
	Foundation string
	Component  int // 1 = RTP, 2 = RTCP
	Type       string
	Protocol   string
	IP         string
	Port       int
	BaseIP     string
	BasePort   int
	Priority   uint32
	Username   string
	Password   string
}

// RemoteCandidate is a normalised candidate the core hands to the
// backend after applying a remote offer/answer.
type RemoteCandidate = LocalCandidate

// Codec is the backend's own codec representation, used for both local
// and remote codecs, opaque beyond what the core needs to push/compare.
type Codec struct {
	PayloadID int
	Name      string
	ClockRate int
	Params    map[string]string
}

// SRTPKey is the 30-byte key plus key id exchanged in SDP (§3).
type SRTPKey struct {
	KeyID int
	Key   [30]byte
}

// MediaBackend is the host's media engine, as consumed by the core
// (spec.md §6 "Backend capability (consumed)").
type MediaBackend interface {
	// CreateStream allocates a stream for the given media type and
	// begins ICE candidate gathering in the given port range under the
	// given ICE version ("draft-6" or "rfc-5245"). Completion is
	// reported asynchronously via Core.StreamInitialised.
	CreateStream(ctx context.Context, callID, streamID, mediaType string, ports PortRange, iceVersion string) (StreamHandle, error)

	// LocalCodecs returns the backend's supported codecs for a stream,
	// used to build the outbound offer.
	LocalCodecs(h StreamHandle) []Codec

	// LocalCandidates returns the candidates gathered for a stream.
	LocalCandidates(h StreamHandle) []LocalCandidate

	// ActiveCandidatePair returns the local/remote candidates the ICE
	// layer settled on, once CandidatePairEstablished has fired.
	ActiveCandidatePair(h StreamHandle) (local, remote LocalCandidate, ok bool)

	// SetRemoteCodecs pushes the negotiated remote codec list. Returns
	// false if the backend accepted none of them (§4.4 apply_remote_message).
	SetRemoteCodecs(h StreamHandle, codecs []Codec) bool

	// SetRemoteCandidates pushes the peer's candidates.
	SetRemoteCandidates(h StreamHandle, cands []RemoteCandidate) error

	// InstallSRTPKeys installs the local and/or remote SRTP key
	// material for a stream.
	InstallSRTPKeys(h StreamHandle, local, remote *SRTPKey) error

	// SetHeld toggles the backend's held flag for a stream (hold/unhold,
	// §4.4). Idempotent: calling with the same value twice is a no-op.
	SetHeld(h StreamHandle, held bool) error

	// SetCNAME sets the RTCP CNAME for a stream.
	SetCNAME(h StreamHandle, cname string) error

	// Read/Write move bytes on a non-RTP "data"/"applicationsharing"
	// stream (used by the file-transfer overlay, §4.5).
	Read(h StreamHandle, buf []byte) (int, error)
	Write(h StreamHandle, data []byte) (int, error)

	// Accept/Reject/HangUp drive the backend's own call state.
	Accept(h StreamHandle) error
	Reject(h StreamHandle) error
	HangUp(h StreamHandle) error

	// TranslateMediaRelays hands the resolved relay list (§4.3) to the
	// backend so its ICE gatherer can use them as TURN-like relays.
	TranslateMediaRelays(relays []MediaRelay, username, password string)

	// LocalNetworkIP returns the host's best-guess routable local IP,
	// used as the SDP session-level c= address.
	LocalNetworkIP() (string, error)
}

// MediaRelay is a media relay entry from the MRAS response (§4.3),
// after DNS resolution has replaced its hostname with an IP (or left
// it empty on failure, per spec.md §4.3).
type MediaRelay struct {
	HostOrIP string
	UDPPort  int
	TCPPort  int
}

// Resolver is the host's asynchronous DNS interface (§4.3, §6). A
// cancellable in-flight query is represented by the Handle returned
// from ResolveA; calling Cancel on it before the callback fires
// suppresses the callback.
type Resolver interface {
	ResolveA(ctx context.Context, hostname string, callback func(ip string, err error)) Handle
}

// Handle is a cancellable pending operation (a DNS query in this
// module's only use, §5 "Cancellation and timeouts").
type Handle interface {
	Cancel()
}

// Core is the set of host → core event callbacks (§6 "Host events
// delivered into the core"). The host calls these synchronously from
// its single event loop; the core never reenters them for the same
// Call-ID (§5).
type Core interface {
	StreamInitialised(callID, streamID string, h StreamHandle)
	CandidatePairEstablished(callID, streamID string)
	StreamEnd(callID, streamID string)
	MediaEnd(callID string)
	ReadAvailable(callID, streamID string)
	Accepted(callID string)
	Rejected(callID string)
	HoldRequested(callID string, hold bool)
	HangupRequested(callID string)
	Error(callID string, err error)
}
