package sdpmodel

import (
	"sort"
	"strings"
)

// SortCandidates stably sorts candidates by (foundation, username,
// component), spec.md §3.
func SortCandidates(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Foundation != b.Foundation {
			return a.Foundation < b.Foundation
		}
		if a.Username != b.Username {
			return a.Username < b.Username
		}
		return a.Component < b.Component
	})
	return out
}

func isIPv6(ip string) bool {
	return strings.Contains(ip, ":")
}

// filterIPv6 drops any candidate whose IP or base IP is an IPv6
// literal. Spec.md §4.1 and §8 invariant 3: IPv6 candidates are never
// emitted.
func filterIPv6(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if isIPv6(c.IP) || isIPv6(c.BaseIP) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// filterMistaggedTCP implements the mistagged-TCP workaround: among
// UDP candidates sharing the same foundation, if two non-host
// candidates on the same IP have equal port or equal base port,
// both are discarded — they are assumed to be TCP candidates
// misreported as UDP by older backends.
func filterMistaggedTCP(cands []Candidate) []Candidate {
	byFoundation := make(map[string][]int)
	for i, c := range cands {
		if c.Protocol != ProtoUDP {
			continue
		}
		byFoundation[c.Foundation] = append(byFoundation[c.Foundation], i)
	}

	discard := make(map[int]bool)
	for _, idxs := range byFoundation {
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				i, j := idxs[a], idxs[b]
				ci, cj := cands[i], cands[j]
				if ci.Type == CandidateHost || cj.Type == CandidateHost {
					continue
				}
				if ci.IP != cj.IP {
					continue
				}
				if ci.Port == cj.Port || ci.BasePort == cj.BasePort {
					discard[i] = true
					discard[j] = true
				}
			}
		}
	}

	out := make([]Candidate, 0, len(cands))
	for i, c := range cands {
		if discard[i] {
			continue
		}
		out = append(out, c)
	}
	return out
}

// inferActivePorts implements active-port inference: TCP-active
// candidates advertised with port 0 inherit the port of a matching
// TCP-passive candidate (same type, same IP, same base IP); base ports
// of relay candidates inherit from the base port of any host candidate
// sharing the same base IP.
func inferActivePorts(cands []Candidate) []Candidate {
	out := make([]Candidate, len(cands))
	copy(out, cands)

	for i, c := range out {
		if c.Protocol == ProtoTCPActive && c.Port == 0 {
			for _, other := range out {
				if other.Protocol == ProtoTCPPassive && other.Type == c.Type &&
					other.IP == c.IP && other.BaseIP == c.BaseIP {
					out[i].Port = other.Port
					break
				}
			}
		}
	}

	for i, c := range out {
		if c.Type == CandidateRelay && c.BasePort == 0 {
			for _, other := range out {
				if other.Type == CandidateHost && other.BaseIP == c.BaseIP {
					out[i].BasePort = other.BasePort
					break
				}
			}
		}
	}

	return out
}

// NormalizeCandidates runs the full backend-candidate normalisation
// pipeline of spec.md §4.1 in the documented order: IPv6 filter,
// mistagged-TCP workaround, active-port inference, then the stable
// sort.
func NormalizeCandidates(cands []Candidate) []Candidate {
	cands = filterIPv6(cands)
	cands = filterMistaggedTCP(cands)
	cands = inferActivePorts(cands)
	return SortCandidates(cands)
}

// SelectSectionAddress picks the IP/RTP-port/RTCP-port a media
// section should advertise, per spec.md §4.1: prefer a host-type
// candidate's IP; fall back to any candidate's IP if none is a host
// type. The RTP port comes from the component=RTP entry sharing that
// IP, the RTCP port from the component=RTCP entry; the scan stops once
// both are filled.
func SelectSectionAddress(cands []Candidate) (ip string, rtpPort int, rtcpPort int, hasRTCP bool) {
	if len(cands) == 0 {
		return "", 0, 0, false
	}

	chosenIP := cands[0].IP
	for _, c := range cands {
		if c.Type == CandidateHost {
			chosenIP = c.IP
			break
		}
	}

	gotRTP, gotRTCP := false, false
	for _, c := range cands {
		if c.IP != chosenIP {
			continue
		}
		if !gotRTP && c.Component == ComponentRTP {
			rtpPort = c.Port
			gotRTP = true
		}
		if !gotRTCP && c.Component == ComponentRTCP {
			rtcpPort = c.Port
			gotRTCP = true
		}
		if gotRTP && gotRTCP {
			break
		}
	}

	return chosenIP, rtpPort, rtcpPort, gotRTCP
}
