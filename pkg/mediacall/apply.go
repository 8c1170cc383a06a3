package mediacall

import (
	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/callerr"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
)

// applyRemoteMessage implements spec.md §4.4's apply_remote_message:
// for each remote section, end/fail/apply as described, update the
// call's encryption-compatible flag, and end the call if every
// section has failed.
func (m *Manager) applyRemoteMessage(call *Call, msg *sdpmodel.Message) *callerr.CallError {
	for _, sec := range msg.Sections {
		if sec.Port == 0 {
			if s, ok := call.Stream(sec.Name); ok && s.Handle != nil {
				_ = m.backend.HangUp(s.Handle) // stream end; backend reports StreamEnd asynchronously too
			}
			call.RemoveStream(sec.Name)
			continue
		}

		s, ok := call.Stream(sec.Name)
		if !ok {
			call.AppendFailedSection(sec)
			continue
		}

		if !m.applySection(call, s, sec) {
			call.AppendFailedSection(sec)
			call.RemoveStream(s.ID)
			continue
		}

		if sec.EncryptionPolicy != nil && *sec.EncryptionPolicy == sdpmodel.EncryptionRejected &&
			call.EncryptionPolicy == sdpmodel.EncryptionRequired {
			call.EncryptionCompatible = false
		}

	}

	if call.StreamCount() == 0 {
		return callerr.New(callerr.CategoryBackend, "Call failed", "every media section failed to apply")
	}

	return nil
}

// applySection pushes codecs, SRTP keys, candidates, and the
// inactive/held flag for one stream. Returns false if the backend
// accepted none of the offered codecs.
func (m *Manager) applySection(call *Call, s *Stream, sec sdpmodel.MediaSection) bool {
	if s.Handle == nil {
		return false
	}

	codecs := convertSDPCodecsToBackend(sec.Codecs)
	if len(codecs) > 0 && !m.backend.SetRemoteCodecs(s.Handle, codecs) {
		return false
	}

	if sec.EncryptionKey != nil && s.SRTPKey != nil {
		remote := &backend.SRTPKey{KeyID: sec.EncryptionKey.KeyID, Key: sec.EncryptionKey.Key}
		_ = m.backend.InstallSRTPKeys(s.Handle, s.SRTPKey, remote)
		s.RemoteKeyID = sec.EncryptionKey.KeyID
	}

	if len(sec.Candidates) > 0 {
		_ = m.backend.SetRemoteCandidates(s.Handle, convertSDPCandidatesToBackend(sec.Candidates))
	}

	if sec.Inactive && !s.Held {
		s.Held = true
		_ = m.backend.SetHeld(s.Handle, true)
	} else if !sec.Inactive && s.Held {
		s.Held = false
		_ = m.backend.SetHeld(s.Handle, false)
	}

	s.RemoteSet = true
	return true
}
