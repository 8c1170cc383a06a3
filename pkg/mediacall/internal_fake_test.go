package mediacall

import (
	"context"

	"github.com/ocsphone/mediacall/pkg/backend"
)

// fakeBackend is an in-memory backend.MediaBackend driving this
// package's tests without a real media engine.
type fakeBackend struct {
	codecs      map[backend.StreamHandle][]backend.Codec
	candidates  map[backend.StreamHandle][]backend.LocalCandidate
	acceptRemote bool
	heldState   map[backend.StreamHandle]bool
	hungUp      []backend.StreamHandle
	nextHandle  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		codecs:      map[backend.StreamHandle][]backend.Codec{},
		candidates:  map[backend.StreamHandle][]backend.LocalCandidate{},
		heldState:   map[backend.StreamHandle]bool{},
		acceptRemote: true,
	}
}

type fakeHandle int

func (f *fakeBackend) CreateStream(ctx context.Context, callID, streamID, mediaType string, ports backend.PortRange, iceVersion string) (backend.StreamHandle, error) {
	f.nextHandle++
	h := fakeHandle(f.nextHandle)
	f.codecs[h] = []backend.Codec{{PayloadID: 0, Name: "PCMU", ClockRate: 8000}}
	f.candidates[h] = []backend.LocalCandidate{
		{Foundation: "1", Component: 1, Type: "host", Protocol: "udp", IP: "203.0.113.9", Port: 16000, Priority: 100},
	}
	return h, nil
}

func (f *fakeBackend) LocalCodecs(h backend.StreamHandle) []backend.Codec { return f.codecs[h] }
func (f *fakeBackend) LocalCandidates(h backend.StreamHandle) []backend.LocalCandidate {
	return f.candidates[h]
}
func (f *fakeBackend) ActiveCandidatePair(h backend.StreamHandle) (backend.LocalCandidate, backend.LocalCandidate, bool) {
	return backend.LocalCandidate{}, backend.LocalCandidate{}, false
}
func (f *fakeBackend) SetRemoteCodecs(h backend.StreamHandle, codecs []backend.Codec) bool {
	return f.acceptRemote && len(codecs) > 0
}
func (f *fakeBackend) SetRemoteCandidates(h backend.StreamHandle, cands []backend.RemoteCandidate) error {
	return nil
}
func (f *fakeBackend) InstallSRTPKeys(h backend.StreamHandle, local, remote *backend.SRTPKey) error {
	return nil
}
func (f *fakeBackend) SetHeld(h backend.StreamHandle, held bool) error {
	f.heldState[h] = held
	return nil
}
func (f *fakeBackend) SetCNAME(h backend.StreamHandle, cname string) error { return nil }
func (f *fakeBackend) Read(h backend.StreamHandle, buf []byte) (int, error)   { return 0, nil }
func (f *fakeBackend) Write(h backend.StreamHandle, data []byte) (int, error) { return len(data), nil }
func (f *fakeBackend) Accept(h backend.StreamHandle) error { return nil }
func (f *fakeBackend) Reject(h backend.StreamHandle) error { return nil }
func (f *fakeBackend) HangUp(h backend.StreamHandle) error {
	f.hungUp = append(f.hungUp, h)
	return nil
}
func (f *fakeBackend) TranslateMediaRelays(relays []backend.MediaRelay, username, password string) {}
func (f *fakeBackend) LocalNetworkIP() (string, error)                                             { return "203.0.113.9", nil }
