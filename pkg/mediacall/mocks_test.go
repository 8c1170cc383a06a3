package mediacall

// mockServerTransaction and mockClientTransaction let the signalling
// tests drive onCancelRequest/onReinvite/watchHoldReinviteResponses
// without a live SIP transport, grounded on the teacher's own
// pkg/dialog/mocks_test.go fakes for the same sipgo interfaces.

import (
	"github.com/emiago/sipgo/sip"
)

type mockServerTransaction struct {
	req      *sip.Request
	responses []*sip.Response
}

func (m *mockServerTransaction) Request() *sip.Request { return m.req }
func (m *mockServerTransaction) Respond(res *sip.Response) error {
	m.responses = append(m.responses, res)
	return nil
}
func (m *mockServerTransaction) Ack(req *sip.Request) error { return nil }
func (m *mockServerTransaction) Cancel() error              { return nil }
func (m *mockServerTransaction) Close() error                { return nil }
func (m *mockServerTransaction) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockServerTransaction) Terminate()                              {}
func (m *mockServerTransaction) OnTerminate(f sip.FnTxTerminate) bool     { return false }
func (m *mockServerTransaction) OnClose(f sip.FnTxTerminate) bool         { return false }
func (m *mockServerTransaction) Acks() <-chan *sip.Request                { return nil }
func (m *mockServerTransaction) Err() error                               { return nil }
func (m *mockServerTransaction) OnCancel(f sip.FnTxCancel) bool           { return false }

type mockClientTransaction struct {
	responses chan *sip.Response
	err       error
}

func (m *mockClientTransaction) Responses() <-chan *sip.Response { return m.responses }
func (m *mockClientTransaction) Err() error                      { return m.err }
func (m *mockClientTransaction) Ack(req *sip.Request) error      { return nil }
func (m *mockClientTransaction) Cancel() error                   { return nil }
func (m *mockClientTransaction) Close() error                    { return nil }
func (m *mockClientTransaction) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (m *mockClientTransaction) OnTerminate(f sip.FnTxTerminate) bool { return false }
func (m *mockClientTransaction) Request() *sip.Request                { return nil }
func (m *mockClientTransaction) Terminate()                           {}
func (m *mockClientTransaction) OnRetransmission(f sip.FnTxResponse) bool { return false }
