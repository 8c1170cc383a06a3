package sdpmodel

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// Parse decodes a wire SDP body into a Message. Parse failures are
// returned as plain errors; callers map them to 488 Not Acceptable
// Here per spec.md §7 via callerr.MalformedSDP.
func Parse(data []byte) (*Message, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("sdpmodel: unmarshal: %w", err)
	}

	msg := &Message{}
	if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		msg.OriginIP = sd.ConnectionInformation.Address.Address
	} else {
		msg.OriginIP = sd.Origin.UnicastAddress
	}

	for _, md := range sd.MediaDescriptions {
		sec, err := parseSection(md, msg.OriginIP)
		if err != nil {
			return nil, err
		}
		msg.Sections = append(msg.Sections, sec)
	}

	return msg, nil
}

func parseSection(md *sdp.MediaDescription, sessionIP string) (MediaSection, error) {
	sec := MediaSection{
		Name: md.MediaName.Media,
		Port: md.MediaName.Port.Value,
		IP:   sessionIP,
	}
	if md.ConnectionInformation != nil && md.ConnectionInformation.Address != nil {
		sec.IP = md.ConnectionInformation.Address.Address
	}

	rtpmaps := make(map[int]Codec)
	fmtps := make(map[int]string)
	order := make([]int, 0, len(md.MediaName.Formats))
	for _, f := range md.MediaName.Formats {
		if id, err := strconv.Atoi(f); err == nil {
			order = append(order, id)
		}
	}

	for _, a := range md.Attributes {
		switch a.Key {
		case "rtpmap":
			id, codec, err := parseRtpmap(a.Value, md.MediaName.Media)
			if err != nil {
				return sec, err
			}
			rtpmaps[id] = codec
		case "fmtp":
			id, params, ok := strings.Cut(a.Value, " ")
			if ok {
				if pid, err := strconv.Atoi(id); err == nil {
					fmtps[pid] = params
				}
			}
		case "candidate":
			c, err := parseCandidate(a.Value)
			if err != nil {
				return sec, err
			}
			sec.Candidates = append(sec.Candidates, c)
		case "remote-candidate":
			c, err := parseCandidate(a.Value)
			if err != nil {
				return sec, err
			}
			sec.RemoteCandidates = append(sec.RemoteCandidates, c)
		case "rtcp":
			if port, err := strconv.Atoi(a.Value); err == nil {
				sec.RTCPPort = port
			}
		case "encryption":
			if pol, ok := ParseEncryptionPolicy(a.Value); ok {
				sec.EncryptionPolicy = &pol
			}
		case "key":
			key, err := parseKey(a.Value)
			if err != nil {
				return sec, err
			}
			sec.EncryptionKey = key
		case "inactive":
			sec.Inactive = true
		default:
			sec.Attributes = append(sec.Attributes, Attribute{Name: a.Key, Value: a.Value})
		}
	}

	for _, id := range order {
		codec, ok := rtpmaps[id]
		if !ok {
			// static payload type with no rtpmap line: leave name empty,
			// caller-side codec negotiation fills it from a static table.
			codec = Codec{PayloadID: id, MediaType: md.MediaName.Media}
		}
		if params, ok := fmtps[id]; ok {
			codec.Params = splitParams(params)
		}
		sec.Codecs = append(sec.Codecs, codec)
	}

	return sec, nil
}

func parseRtpmap(value, mediaType string) (int, Codec, error) {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return 0, Codec{}, fmt.Errorf("sdpmodel: malformed rtpmap %q", value)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, Codec{}, fmt.Errorf("sdpmodel: malformed rtpmap payload id %q", parts[0])
	}
	nameRate := strings.Split(parts[1], "/")
	codec := Codec{PayloadID: id, MediaType: mediaType}
	if len(nameRate) > 0 {
		codec.Name = nameRate[0]
	}
	if len(nameRate) > 1 {
		if rate, err := strconv.Atoi(nameRate[1]); err == nil {
			codec.ClockRate = rate
		}
	}
	return id, codec, nil
}

func splitParams(s string) []Param {
	var params []Param
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		params = append(params, Param{Name: name, Value: value})
	}
	return params
}

func parseCandidate(value string) (Candidate, error) {
	fields := strings.Fields(value)
	if len(fields) < 8 {
		return Candidate{}, fmt.Errorf("sdpmodel: malformed candidate %q", value)
	}

	component, err := strconv.Atoi(fields[1])
	if err != nil {
		return Candidate{}, fmt.Errorf("sdpmodel: malformed candidate component %q", fields[1])
	}
	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return Candidate{}, fmt.Errorf("sdpmodel: malformed candidate priority %q", fields[3])
	}
	port, err := strconv.Atoi(fields[5])
	if err != nil {
		return Candidate{}, fmt.Errorf("sdpmodel: malformed candidate port %q", fields[5])
	}

	c := Candidate{
		Foundation: fields[0],
		Component:  Component(component),
		Protocol:   CandidateProtocol(fields[2]),
		Priority:   uint32(priority),
		IP:         fields[4],
		Port:       port,
	}

	for i := 6; i+1 < len(fields); i += 2 {
		switch fields[i] {
		case "typ":
			c.Type = CandidateType(fields[i+1])
		case "raddr":
			c.BaseIP = fields[i+1]
		case "rport":
			if p, err := strconv.Atoi(fields[i+1]); err == nil {
				c.BasePort = p
			}
		case "username":
			c.Username = fields[i+1]
		case "password":
			c.Password = fields[i+1]
		}
	}

	return c, nil
}

func parseKey(value string) (*EncryptionKey, error) {
	idStr, b64, ok := strings.Cut(value, " ")
	if !ok {
		return nil, fmt.Errorf("sdpmodel: malformed key attribute %q", value)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return nil, fmt.Errorf("sdpmodel: malformed key id %q", idStr)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("sdpmodel: malformed key payload: %w", err)
	}
	if len(raw) != 30 {
		return nil, fmt.Errorf("sdpmodel: key must be 30 bytes, got %d", len(raw))
	}
	key := &EncryptionKey{KeyID: id}
	copy(key.Key[:], raw)
	return key, nil
}
