package conference

import (
	"testing"

	"github.com/ocsphone/mediacall/pkg/sdpmodel"
	"github.com/stretchr/testify/assert"
)

func TestSupportsAudioVideo(t *testing.T) {
	withAV := &sdpmodel.Message{Sections: []sdpmodel.MediaSection{{Name: "data"}, {Name: "audio"}}}
	assert.True(t, supportsAudioVideo(withAV))

	dataOnly := &sdpmodel.Message{Sections: []sdpmodel.MediaSection{{Name: "data"}}}
	assert.False(t, supportsAudioVideo(dataOnly))
}
