package filetransfer_test

import (
	"context"
	"encoding/xml"
	"testing"

	"github.com/emiago/sipgo/sip"
	"github.com/ocsphone/mediacall/pkg/dialog"
	"github.com/ocsphone/mediacall/pkg/filetransfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender captures every INFO body sent instead of putting it
// on the wire.
type recordingSender struct {
	bodies [][]byte
}

func (r *recordingSender) SendInfo(ctx context.Context, s *dialog.Session, contentType string, body []byte) (sip.ClientTransaction, error) {
	r.bodies = append(r.bodies, body)
	return nil, nil
}

func (r *recordingSender) lastRoot() string {
	if len(r.bodies) == 0 {
		return ""
	}
	var probe struct{ XMLName xml.Name }
	_ = xml.Unmarshal(r.bodies[len(r.bodies)-1], &probe)
	return probe.XMLName.Local
}

func TestSenderPublishFileBody(t *testing.T) {
	sender := filetransfer.NewSender("call-1", "file-1", "report.pdf", 2048, nil, &recordingSender{})
	body, err := sender.PublishFileBody()
	require.NoError(t, err)
	assert.Contains(t, string(body), `id="file-1"`)
	assert.Contains(t, string(body), `name="report.pdf"`)
	assert.Equal(t, filetransfer.PhasePublished, sender.Phase)
}

func TestReceiverDownloadSequence(t *testing.T) {
	rs := &recordingSender{}
	receiver := filetransfer.NewReceiver("call-1", "file-1", "report.pdf", 2048, nil, rs)

	require.NoError(t, receiver.RequestDownload(context.Background()))
	require.Len(t, rs.bodies, 2)
	assert.Equal(t, filetransfer.PhaseDownloadRequested, receiver.Phase)
}

func TestSenderOnDownloadFileRepliesSuccess(t *testing.T) {
	rs := &recordingSender{}
	sender := filetransfer.NewSender("call-1", "file-1", "report.pdf", 2048, nil, rs)

	body, err := xml.Marshal(struct {
		XMLName xml.Name `xml:"downloadFile"`
		ID      string   `xml:"id,attr"`
	}{ID: "file-1"})
	require.NoError(t, err)

	require.NoError(t, sender.OnInfo(context.Background(), body))
	assert.Equal(t, filetransfer.PhasePending, sender.Phase)
	assert.Equal(t, "success", rs.lastRoot())
}

func TestCancelTransferIsSymmetric(t *testing.T) {
	rs := &recordingSender{}
	sender := filetransfer.NewSender("call-1", "file-1", "report.pdf", 2048, nil, rs)
	require.NoError(t, sender.CancelTransfer(context.Background()))
	assert.True(t, sender.Cancelled())
	assert.Equal(t, filetransfer.PhaseCancelled, sender.Phase)

	receiver := filetransfer.NewReceiver("call-2", "file-2", "a.bin", 10, nil, rs)
	cancelBody, err := xml.Marshal(struct {
		XMLName xml.Name `xml:"request"`
		Type    string   `xml:"type,attr"`
		ID      string   `xml:"id,attr"`
	}{Type: "cancelTransfer", ID: "file-2"})
	require.NoError(t, err)
	require.NoError(t, receiver.OnInfo(context.Background(), cancelBody))
	assert.True(t, receiver.Cancelled())
	assert.Equal(t, "failure", rs.lastRoot())
}

func TestNotifyProgressCompletesOnLastByte(t *testing.T) {
	rs := &recordingSender{}
	notifyBody, err := xml.Marshal(struct {
		XMLName         xml.Name `xml:"notify"`
		Type            string   `xml:"type,attr"`
		ID              string   `xml:"id,attr"`
		BytesReceivedTo int64    `xml:"bytesReceivedTo,attr"`
	}{Type: "fileTransferProgress", ID: "file-1", BytesReceivedTo: 9})
	require.NoError(t, err)

	// The sender observes the receiver's completion notify (§4.5).
	sender := filetransfer.NewSender("call-1", "file-1", "a.bin", 10, nil, rs)
	require.NoError(t, sender.OnInfo(context.Background(), notifyBody))
	assert.Equal(t, filetransfer.PhaseCompleted, sender.Phase)
}
