package mediacall

import (
	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
)

// serializeOffer builds the outbound SDP for a call: one section per
// live stream plus every previously failed section repeated with
// port 0 (§3, §8 invariant 5), codecs/candidates pulled from the
// backend and normalised per §4.1.
func (m *Manager) serializeOffer(call *Call) ([]byte, error) {
	localIP, err := m.backend.LocalNetworkIP()
	if err != nil {
		return nil, err
	}

	msg := &sdpmodel.Message{OriginIP: localIP, ICEVersion: call.ICEVersion()}

	anyHeld := false
	for _, s := range call.Streams() {
		if s.Held {
			anyHeld = true
		}
	}

	for _, s := range call.Streams() {
		sec := m.buildSection(call, s, localIP)
		if anyHeld {
			sec.Inactive = true
		}
		msg.Sections = append(msg.Sections, sec)
	}
	msg.Sections = append(msg.Sections, call.FailedSections...)

	return msg.Marshal(sdpmodel.MarshalOptions{
		ServerDefaultEncryption: m.cfg.ServerDefaultEncryption,
		EffectiveEncryption:     call.EncryptionPolicy,
	})
}

func (m *Manager) buildSection(call *Call, s *Stream, fallbackIP string) sdpmodel.MediaSection {
	sec := sdpmodel.MediaSection{Name: s.ID, IP: fallbackIP, Attributes: s.Attributes, Inactive: s.Held}

	if s.Handle != nil {
		codecs := sdpmodel.NormalizeCodecs(convertBackendCodecs(m.backend.LocalCodecs(s.Handle), s.MediaType))
		sec.Codecs = codecs

		cands := convertBackendCandidates(m.backend.LocalCandidates(s.Handle))
		cands = sdpmodel.NormalizeCandidates(cands)
		sec.Candidates = cands

		ip, rtpPort, rtcpPort, hasRTCP := sdpmodel.SelectSectionAddress(cands)
		if ip != "" {
			sec.IP = ip
		}
		sec.Port = rtpPort
		if hasRTCP && rtcpPort != sec.Port {
			sec.RTCPPort = rtcpPort
		}
	}

	if s.SRTPKey != nil && call.EncryptionPolicy != sdpmodel.EncryptionRejected {
		sec.EncryptionKey = &sdpmodel.EncryptionKey{KeyID: s.SRTPKey.KeyID, Key: s.SRTPKey.Key}
	}

	return sec
}

func convertBackendCodecs(in []backend.Codec, mediaType string) []sdpmodel.Codec {
	out := make([]sdpmodel.Codec, 0, len(in))
	for _, c := range in {
		codec := sdpmodel.Codec{PayloadID: c.PayloadID, Name: c.Name, ClockRate: c.ClockRate, MediaType: mediaType}
		for k, v := range c.Params {
			codec.Params = append(codec.Params, sdpmodel.Param{Name: k, Value: v})
		}
		out = append(out, codec)
	}
	return out
}

func convertBackendCandidates(in []backend.LocalCandidate) []sdpmodel.Candidate {
	out := make([]sdpmodel.Candidate, 0, len(in))
	for _, c := range in {
		out = append(out, sdpmodel.Candidate{
			Foundation: c.Foundation,
			Component:  sdpmodel.Component(c.Component),
			Type:       sdpmodel.CandidateType(c.Type),
			Protocol:   sdpmodel.CandidateProtocol(c.Protocol),
			IP:         c.IP,
			Port:       c.Port,
			BaseIP:     c.BaseIP,
			BasePort:   c.BasePort,
			Priority:   c.Priority,
			Username:   c.Username,
			Password:   c.Password,
		})
	}
	return out
}

func convertSDPCodecsToBackend(in []sdpmodel.Codec) []backend.Codec {
	out := make([]backend.Codec, 0, len(in))
	for _, c := range in {
		codec := backend.Codec{PayloadID: c.PayloadID, Name: c.Name, ClockRate: c.ClockRate}
		if len(c.Params) > 0 {
			codec.Params = make(map[string]string, len(c.Params))
			for _, p := range c.Params {
				codec.Params[p.Name] = p.Value
			}
		}
		out = append(out, codec)
	}
	return out
}

func convertSDPCandidatesToBackend(in []sdpmodel.Candidate) []backend.RemoteCandidate {
	out := make([]backend.RemoteCandidate, 0, len(in))
	for _, c := range in {
		out = append(out, backend.RemoteCandidate{
			Foundation: c.Foundation,
			Component:  int(c.Component),
			Type:       string(c.Type),
			Protocol:   string(c.Protocol),
			IP:         c.IP,
			Port:       c.Port,
			BaseIP:     c.BaseIP,
			BasePort:   c.BasePort,
			Priority:   c.Priority,
			Username:   c.Username,
			Password:   c.Password,
		})
	}
	return out
}
