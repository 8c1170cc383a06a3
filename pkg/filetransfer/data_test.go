package filetransfer_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/filetransfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeBackend is a minimal backend.MediaBackend whose Read/Write move
// bytes through an in-memory buffer, enough to drive the data-plane
// framing without a real media engine.
type pipeBackend struct {
	buf bytes.Buffer
}

func (p *pipeBackend) CreateStream(ctx context.Context, callID, streamID, mediaType string, ports backend.PortRange, iceVersion string) (backend.StreamHandle, error) {
	return nil, nil
}
func (p *pipeBackend) LocalCodecs(h backend.StreamHandle) []backend.Codec             { return nil }
func (p *pipeBackend) LocalCandidates(h backend.StreamHandle) []backend.LocalCandidate { return nil }
func (p *pipeBackend) ActiveCandidatePair(h backend.StreamHandle) (backend.LocalCandidate, backend.LocalCandidate, bool) {
	return backend.LocalCandidate{}, backend.LocalCandidate{}, false
}
func (p *pipeBackend) SetRemoteCodecs(h backend.StreamHandle, codecs []backend.Codec) bool { return true }
func (p *pipeBackend) SetRemoteCandidates(h backend.StreamHandle, cands []backend.RemoteCandidate) error {
	return nil
}
func (p *pipeBackend) InstallSRTPKeys(h backend.StreamHandle, local, remote *backend.SRTPKey) error {
	return nil
}
func (p *pipeBackend) SetHeld(h backend.StreamHandle, held bool) error  { return nil }
func (p *pipeBackend) SetCNAME(h backend.StreamHandle, cname string) error { return nil }
func (p *pipeBackend) Read(h backend.StreamHandle, buf []byte) (int, error)  { return p.buf.Read(buf) }
func (p *pipeBackend) Write(h backend.StreamHandle, data []byte) (int, error) { return p.buf.Write(data) }
func (p *pipeBackend) Accept(h backend.StreamHandle) error { return nil }
func (p *pipeBackend) Reject(h backend.StreamHandle) error { return nil }
func (p *pipeBackend) HangUp(h backend.StreamHandle) error { return nil }
func (p *pipeBackend) TranslateMediaRelays(relays []backend.MediaRelay, username, password string) {}
func (p *pipeBackend) LocalNetworkIP() (string, error) { return "203.0.113.5", nil }

func TestSendFileThenReceiverPump(t *testing.T) {
	be := &pipeBackend{}
	fileData := []byte("the quick brown fox jumps over the lazy dog")

	require.NoError(t, filetransfer.SendFile(be, nil, "req-42", bytes.NewReader(fileData)))

	var received bytes.Buffer
	recv := filetransfer.NewFrameReceiver(be, nil, &received)

	ended, total, err := recv.Pump(nil) // start frame
	require.NoError(t, err)
	assert.False(t, ended)
	assert.Zero(t, total)

	ended, total, err = recv.Pump(nil) // data frame
	require.NoError(t, err)
	assert.False(t, ended)
	assert.EqualValues(t, len(fileData), total)

	ended, _, err = recv.Pump(nil) // end frame
	require.NoError(t, err)
	assert.True(t, ended)

	assert.Equal(t, fileData, received.Bytes())
}

type alwaysCancelled struct{}

func (alwaysCancelled) Cancelled() bool { return true }

func TestReceiverDiscardsDataWhileCancelled(t *testing.T) {
	be := &pipeBackend{}
	require.NoError(t, filetransfer.SendFile(be, nil, "req-1", bytes.NewReader([]byte("payload"))))

	var received bytes.Buffer
	recv := filetransfer.NewFrameReceiver(be, nil, &received)

	_, _, err := recv.Pump(alwaysCancelled{}) // start
	require.NoError(t, err)
	_, _, err = recv.Pump(alwaysCancelled{}) // data, discarded
	require.NoError(t, err)
	assert.Empty(t, received.Bytes(), "cancelled transfer must discard incoming data bytes")
}
