// Package sdpmodel implements the SDP model & codec component of
// spec.md §4.1: a translation layer between wire SDP text and an
// in-memory model tailored to the quirks real Lync/OCS deployments
// need, built on top of github.com/pion/sdp/v3 for the actual
// line-level marshal/unmarshal.
package sdpmodel

// ICEVersion is the ICE dialect a call negotiates under (GLOSSARY).
type ICEVersion int

const (
	ICEUnspecified ICEVersion = iota
	ICEDraft6                 // legacy
	ICERFC5245                // current
)

func (v ICEVersion) String() string {
	switch v {
	case ICEDraft6:
		return "draft-6"
	case ICERFC5245:
		return "rfc-5245"
	default:
		return "unspecified"
	}
}

// Other returns the alternative ICE version, for the retry path in
// spec.md §4.4.
func (v ICEVersion) Other() ICEVersion {
	if v == ICERFC5245 {
		return ICEDraft6
	}
	return ICERFC5245
}

// EncryptionPolicy is the effective per-call/per-backend SRTP policy
// (§4.4.1). ObeyServer is a sentinel only ever used as a configured
// setting; it resolves to the server's advertised default before it
// reaches the model.
type EncryptionPolicy int

const (
	EncryptionObeyServer EncryptionPolicy = iota
	EncryptionRejected
	EncryptionOptional
	EncryptionRequired
)

func (p EncryptionPolicy) String() string {
	switch p {
	case EncryptionRejected:
		return "rejected"
	case EncryptionOptional:
		return "optional"
	case EncryptionRequired:
		return "required"
	default:
		return "obey-server"
	}
}

func ParseEncryptionPolicy(s string) (EncryptionPolicy, bool) {
	switch s {
	case "rejected":
		return EncryptionRejected, true
	case "optional":
		return EncryptionOptional, true
	case "required":
		return EncryptionRequired, true
	default:
		return EncryptionObeyServer, false
	}
}

// Component is the RTP/RTCP component a candidate belongs to (§3).
type Component int

const (
	ComponentRTP Component = 1
	ComponentRTCP Component = 2
)

// CandidateType is one of host/relay/srflx/prflx/any (§3).
type CandidateType string

const (
	CandidateHost  CandidateType = "host"
	CandidateRelay CandidateType = "relay"
	CandidateSrflx CandidateType = "srflx"
	CandidatePrflx CandidateType = "prflx"
	CandidateAny   CandidateType = "any"
)

// CandidateProtocol is one of udp/tcp-passive/tcp-active (§3).
type CandidateProtocol string

const (
	ProtoUDP        CandidateProtocol = "udp"
	ProtoTCPPassive CandidateProtocol = "tcp-passive"
	ProtoTCPActive  CandidateProtocol = "tcp-active"
)

// Candidate mirrors spec.md §3's Candidate record.
type Candidate struct {
	Foundation string
	Component  Component
	Type       CandidateType
	Protocol   CandidateProtocol
	IP         string
	Port       int
	BaseIP     string
	BasePort   int
	Priority   uint32
	Username   string
	Password   string
}

// Param is a free-form fmtp name/value pair, order preserved.
type Param struct {
	Name  string
	Value string
}

// Codec mirrors spec.md §3's Codec record.
type Codec struct {
	PayloadID int
	Name      string
	ClockRate int
	MediaType string // audio|video|application, inherited from the section
	Params    []Param
}

// Attribute is a generic name/value SDP attribute, order preserved
// (spec.md §4.1: "extra stream attributes are appended verbatim in
// insertion order").
type Attribute struct {
	Name  string
	Value string
}

// EncryptionKey is the 30-byte SRTP key plus its integer id (§3).
type EncryptionKey struct {
	KeyID int
	Key   [30]byte
}

// MediaSection is one m= block: spec.md §3's per-stream SDP view.
type MediaSection struct {
	Name        string // audio|video|data|applicationsharing
	Port        int    // 0 marks a failed/declined section
	IP          string
	Codecs      []Codec
	Candidates       []Candidate
	RemoteCandidates []Candidate
	Attributes       []Attribute
	EncryptionKey    *EncryptionKey
	EncryptionPolicy *EncryptionPolicy // nil if the peer didn't advertise a=encryption
	EncryptionActive bool
	Inactive         bool

	// RTCPPort is set when the chosen host candidate has an RTCP port
	// distinct from its RTP port (§4.1: "an explicit rtcp attribute").
	RTCPPort int
}

// Message is the decoded SDP view of spec.md §3: origin IP, ICE
// version tag, ordered media sections.
type Message struct {
	OriginIP   string
	ICEVersion ICEVersion
	Sections   []MediaSection
}

// SectionByName returns the first section with the given name, or nil.
func (m *Message) SectionByName(name string) *MediaSection {
	for i := range m.Sections {
		if m.Sections[i].Name == name {
			return &m.Sections[i]
		}
	}
	return nil
}
