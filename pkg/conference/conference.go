// Package conference implements the conference specialisation of
// spec.md §4.6 on top of pkg/mediacall: deriving the audio-video focus
// URI from a conference session id, and picking the ICE dialect by
// the account's Lync-2013 flag.
package conference

import (
	"context"
	"fmt"
	"strings"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/mediacall"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
)

const (
	focusPrefix   = "app:conf:focus:"
	avFocusPrefix = "app:conf:audio-video:"
)

// FocusURI derives the audio-video focus URI from a conference
// session id by replacing app:conf:focus: with
// app:conf:audio-video: (§4.6).
func FocusURI(sessionID string) (string, error) {
	if !strings.HasPrefix(sessionID, focusPrefix) {
		return "", fmt.Errorf("conference: %q is not a focus session id", sessionID)
	}
	return avFocusPrefix + strings.TrimPrefix(sessionID, focusPrefix), nil
}

// ICEVersion picks the dialect by the account's Lync-2013 flag (§4.6).
func ICEVersion(lync2013 bool) sdpmodel.ICEVersion {
	if lync2013 {
		return sdpmodel.ICERFC5245
	}
	return sdpmodel.ICEDraft6
}

// supportsAudioVideo reports whether a focus's SDP offer advertises
// at least one audio or video section, used to decide whether to
// refuse the join (§4.6: "If the conference focus does not advertise
// A/V support, refuse with a notice").
func supportsAudioVideo(msg *sdpmodel.Message) bool {
	for _, sec := range msg.Sections {
		if sec.Name == "audio" || sec.Name == "video" {
			return true
		}
	}
	return false
}

// Join starts the outbound call to a conference's audio-video focus.
// It refuses locally (without sending anything) if the previously
// learned focus offer lacks A/V support.
func Join(ctx context.Context, mgr *mediacall.Manager, sessionID string, lync2013 bool, streams []mediacall.StreamRequest, focusOffer *sdpmodel.Message) (*mediacall.Call, error) {
	if focusOffer != nil && !supportsAudioVideo(focusOffer) {
		return nil, fmt.Errorf("conference: focus %q does not support audio/video", sessionID)
	}

	focusURIStr, err := FocusURI(sessionID)
	if err != nil {
		return nil, err
	}
	var focusURI sip.Uri
	if err := sip.ParseUri(focusURIStr, &focusURI); err != nil {
		return nil, fmt.Errorf("conference: invalid focus URI %q: %w", focusURIStr, err)
	}

	call, err := mgr.StartOutboundCall(ctx, focusURI, streams)
	if err != nil {
		return nil, err
	}
	call.SetICEVersion(ICEVersion(lync2013))
	return call, nil
}
