package conference_test

import (
	"testing"

	"github.com/ocsphone/mediacall/pkg/conference"
	"github.com/ocsphone/mediacall/pkg/sdpmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFocusURIRewrite(t *testing.T) {
	uri, err := conference.FocusURI("app:conf:focus:abc123@example.com")
	require.NoError(t, err)
	assert.Equal(t, "app:conf:audio-video:abc123@example.com", uri)
}

func TestFocusURIRejectsNonFocusID(t *testing.T) {
	_, err := conference.FocusURI("sip:bob@example.com")
	assert.Error(t, err)
}

func TestICEVersionByLync2013Flag(t *testing.T) {
	assert.Equal(t, sdpmodel.ICERFC5245, conference.ICEVersion(true))
	assert.Equal(t, sdpmodel.ICEDraft6, conference.ICEVersion(false))
}
