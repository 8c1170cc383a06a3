// Package filetransfer implements the Lync file-transfer overlay of
// spec.md §4.5: a control plane of XML messages exchanged over SIP
// INFO, and a data plane of length-framed chunks carried on a
// dedicated "data" stream of an underlying media call.
package filetransfer

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
	"github.com/ocsphone/mediacall/pkg/backend"
	"github.com/ocsphone/mediacall/pkg/dialog"
)

const contentType = "application/ms-filetransfer+xml"

// infoSender is the one piece of *dialog.Transport the control plane
// needs, narrowed to an interface so tests can inject a fake instead
// of standing up a real SIP transport.
type infoSender interface {
	SendInfo(ctx context.Context, s *dialog.Session, contentType string, body []byte) (sip.ClientTransaction, error)
}

// Role distinguishes the sending and receiving side of a transfer;
// the control-plane message sequence differs for each (§4.5).
type Role int

const (
	RoleSender Role = iota
	RoleReceiver
)

// Phase is the control-plane state of one transfer.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePublished
	PhaseDownloadRequested
	PhasePending
	PhaseTransferring
	PhaseCancelled
	PhaseCompleted
)

type xmlPublishFile struct {
	XMLName xml.Name `xml:"publishFile"`
	ID      string   `xml:"id,attr"`
	Name    string   `xml:"name,attr"`
	Size    int64    `xml:"size,attr"`
}

type xmlDownloadFile struct {
	XMLName xml.Name `xml:"downloadFile"`
	ID      string   `xml:"id,attr"`
}

type xmlRequestCancel struct {
	XMLName xml.Name `xml:"request"`
	Type    string   `xml:"type,attr"` // "cancelTransfer"
	ID      string   `xml:"id,attr"`
}

type xmlSuccess struct {
	XMLName xml.Name `xml:"success"`
	ID      string   `xml:"id,attr"`
}

type xmlFailure struct {
	XMLName xml.Name `xml:"failure"`
	ID      string   `xml:"id,attr"`
	Reason  string   `xml:"reason,attr"`
}

type xmlNotify struct {
	XMLName         xml.Name `xml:"notify"`
	Type            string   `xml:"type,attr"` // "fileTransferProgress"
	ID              string   `xml:"id,attr"`
	BytesReceivedTo int64    `xml:"bytesReceivedTo,attr"`
}

// Transfer is one Lync file transfer attached to the "data" stream of
// a media call. It owns the control-plane state (§4.5 first two
// paragraphs); the data plane is driven separately by SendFile and
// Receiver in frame.go.
type Transfer struct {
	RequestID string
	FileID    string
	FileName  string
	FileSize  int64
	Role      Role
	Phase     Phase

	CallID   string
	StreamID string
	Handle   backend.StreamHandle

	session   *dialog.Session
	transport infoSender

	cancelled bool
	received  int64
}

// NewSender starts a Transfer for the local side publishing a file;
// PublishFileBody gives the XML to attach alongside the SDP in the
// outbound INVITE (§4.5: "multipart: a publishFile request ...
// alongside the usual SDP").
func NewSender(callID, fileID, fileName string, fileSize int64, session *dialog.Session, transport infoSender) *Transfer {
	return &Transfer{
		RequestID: uuid.NewString(),
		FileID:    fileID,
		FileName:  fileName,
		FileSize:  fileSize,
		Role:      RoleSender,
		Phase:     PhaseIdle,
		CallID:    callID,
		StreamID:  "data",
		session:   session,
		transport: transport,
	}
}

// NewReceiver starts a Transfer for the local side of an inbound
// publishFile offer described in the INVITE's multipart body.
func NewReceiver(callID, fileID, fileName string, fileSize int64, session *dialog.Session, transport infoSender) *Transfer {
	return &Transfer{
		RequestID: uuid.NewString(),
		FileID:    fileID,
		FileName:  fileName,
		FileSize:  fileSize,
		Role:      RoleReceiver,
		Phase:     PhaseIdle,
		CallID:    callID,
		StreamID:  "data",
		session:   session,
		transport: transport,
	}
}

// PublishFileBody marshals the publishFile XML for the sender's
// initial multipart INVITE body.
func (t *Transfer) PublishFileBody() ([]byte, error) {
	t.Phase = PhasePublished
	return xml.Marshal(xmlPublishFile{ID: t.FileID, Name: t.FileName, Size: t.FileSize})
}

// RequestDownload is the receiver's reply once it has accepted the
// publishFile offer (§4.5: "the receiver replies success then
// downloadFile referencing the same id").
func (t *Transfer) RequestDownload(ctx context.Context) error {
	if err := t.sendInfo(ctx, xmlSuccess{ID: t.FileID}); err != nil {
		return err
	}
	t.Phase = PhaseDownloadRequested
	return t.sendInfo(ctx, xmlDownloadFile{ID: t.FileID})
}

// OnInfo dispatches an inbound control-plane INFO body by its root
// XML element, implementing the exchange of §4.5.
func (t *Transfer) OnInfo(ctx context.Context, body []byte) error {
	var probe struct {
		XMLName xml.Name
	}
	if err := xml.Unmarshal(body, &probe); err != nil {
		return fmt.Errorf("filetransfer: malformed control message: %w", err)
	}

	switch probe.XMLName.Local {
	case "downloadFile":
		if t.Role == RoleSender {
			t.Phase = PhasePending
			return t.sendInfo(ctx, xmlSuccess{ID: t.FileID})
		}
	case "request":
		var req xmlRequestCancel
		if err := xml.Unmarshal(body, &req); err == nil && req.Type == "cancelTransfer" {
			t.cancelled = true
			t.Phase = PhaseCancelled
			return t.sendInfo(ctx, xmlFailure{ID: t.FileID, Reason: "requestCancelled"})
		}
	case "notify":
		var n xmlNotify
		if err := xml.Unmarshal(body, &n); err == nil && n.Type == "fileTransferProgress" {
			if n.BytesReceivedTo == t.FileSize-1 {
				t.Phase = PhaseCompleted
				return t.sendInfo(ctx, xmlSuccess{ID: t.FileID})
			}
		}
	case "success", "failure":
		// Acknowledgements of our own outgoing messages; no action needed.
	}
	return nil
}

// NotifyProgress is the receiver's completion signal once it has
// consumed the final chunk (§4.5: "bytesReceived/to equals size - 1").
func (t *Transfer) NotifyProgress(ctx context.Context, bytesReceivedTo int64) error {
	t.received = bytesReceivedTo
	return t.sendInfo(ctx, xmlNotify{Type: "fileTransferProgress", ID: t.FileID, BytesReceivedTo: bytesReceivedTo})
}

// CancelTransfer sends the symmetric cancellation request (§4.5).
func (t *Transfer) CancelTransfer(ctx context.Context) error {
	t.cancelled = true
	t.Phase = PhaseCancelled
	return t.sendInfo(ctx, xmlRequestCancel{Type: "cancelTransfer", ID: t.FileID})
}

// Cancelled reports whether this transfer has been locally or
// remotely cancelled; the receiver keeps draining data bytes but
// discards them until BYE once true (§4.5).
func (t *Transfer) Cancelled() bool { return t.cancelled }

func (t *Transfer) sendInfo(ctx context.Context, v interface{}) error {
	body, err := xml.Marshal(v)
	if err != nil {
		return fmt.Errorf("filetransfer: encode control message: %w", err)
	}
	_, err = t.transport.SendInfo(ctx, t.session, contentType, body)
	return err
}
