package sdpmodel

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// MarshalOptions carries the per-deployment default the effective
// policy is compared against before emitting an explicit a=encryption
// line (§4.1, §4.4.1). Marshal takes it as a parameter rather than a
// package global so a single process can serialise against more than
// one server profile.
type MarshalOptions struct {
	ServerDefaultEncryption EncryptionPolicy
	EffectiveEncryption     EncryptionPolicy
}

// Marshal serialises a Message into an SDP wire body: one session
// block plus one media block per section (including failed sections,
// repeated with port 0), built over pion/sdp/v3's SessionDescription
// and its own Marshal().
func (m *Message) Marshal(opts MarshalOptions) ([]byte, error) {
	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      1,
			SessionVersion: 1,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: m.OriginIP,
		},
		SessionName: "session",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: m.OriginIP},
		},
		TimeDescriptions: []sdp.TimeDescription{{Timing: sdp.Timing{StartTime: 0, StopTime: 0}}},
	}

	for _, sec := range m.Sections {
		md, err := marshalSection(sec, opts)
		if err != nil {
			return nil, err
		}
		sd.MediaDescriptions = append(sd.MediaDescriptions, md)
	}

	return sd.Marshal()
}

func marshalSection(sec MediaSection, opts MarshalOptions) (*sdp.MediaDescription, error) {
	codecs := NormalizeCodecs(sec.Codecs)

	formats := make([]string, 0, len(codecs))
	for _, c := range codecs {
		formats = append(formats, strconv.Itoa(c.PayloadID))
	}

	md := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   sec.Name,
			Port:    sdp.RangedPort{Value: sec.Port},
			Protos:  []string{"RTP", "AVP"},
			Formats: formats,
		},
	}

	if sec.IP != "" {
		md.ConnectionInformation = &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: sec.IP},
		}
	}

	for _, c := range codecs {
		rtpmap := fmt.Sprintf("%d %s/%d", c.PayloadID, c.Name, c.ClockRate)
		md.Attributes = append(md.Attributes, sdp.NewAttribute("rtpmap", rtpmap))
		if len(c.Params) > 0 {
			md.Attributes = append(md.Attributes, sdp.NewAttribute("fmtp", fmt.Sprintf("%d %s", c.PayloadID, paramsString(c.Params))))
		}
	}

	for _, cand := range sec.Candidates {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("candidate", candidateString(cand)))
	}
	for _, cand := range sec.RemoteCandidates {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("remote-candidate", candidateString(cand)))
	}

	if sec.RTCPPort != 0 {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("rtcp", strconv.Itoa(sec.RTCPPort)))
	}

	// §4.1: emit a=encryption only when the effective policy differs
	// from the server default, so default-policy calls look like
	// pre-policy clients on the wire.
	if opts.EffectiveEncryption != opts.ServerDefaultEncryption {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("encryption", opts.EffectiveEncryption.String()))
	}

	// Only emit the local key when policy isn't rejected (§4.4.1).
	if sec.EncryptionKey != nil && opts.EffectiveEncryption != EncryptionRejected {
		keyB64 := base64.StdEncoding.EncodeToString(sec.EncryptionKey.Key[:])
		md.Attributes = append(md.Attributes, sdp.NewAttribute("key", fmt.Sprintf("%d %s", sec.EncryptionKey.KeyID, keyB64)))
	}

	if sec.Inactive {
		md.Attributes = append(md.Attributes, sdp.NewAttribute("inactive", ""))
	}

	for _, a := range sec.Attributes {
		md.Attributes = append(md.Attributes, sdp.NewAttribute(a.Name, a.Value))
	}

	return md, nil
}

func paramsString(params []Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.Value == "" {
			parts = append(parts, p.Name)
			continue
		}
		parts = append(parts, p.Name+"="+p.Value)
	}
	return strings.Join(parts, ";")
}

func candidateString(c Candidate) string {
	s := fmt.Sprintf("%s %d %s %d %s %d typ %s", c.Foundation, int(c.Component), string(c.Protocol), c.Priority, c.IP, c.Port, string(c.Type))
	if c.BaseIP != "" {
		s += fmt.Sprintf(" raddr %s rport %d", c.BaseIP, c.BasePort)
	}
	if c.Username != "" {
		s += " username " + c.Username
	}
	if c.Password != "" {
		s += " password " + c.Password
	}
	return s
}
