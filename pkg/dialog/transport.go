// Package dialog is the SIP transport layer beneath pkg/mediacall: it
// owns the sipgo user agent/client/server, builds and sends
// INVITE/ACK/CANCEL/BYE/INFO requests with correct Call-ID/tag/CSeq
// bookkeeping, and hands parsed responses and inbound requests back
// to the caller. It does not know about media, ICE, or call state —
// that belongs to pkg/mediacall's own state machine (spec.md §5).
package dialog

import (
	"context"
	"fmt"
	"sync"

	"github.com/emiago/sipgo"
	"github.com/emiago/sipgo/sip"
)

// Config configures the transport layer.
type Config struct {
	UserAgent string
	Host      string
	Port      int
	Transport string // "udp", "tcp", or "ws"
}

// Transport wraps the sipgo UA/server/client triple and dispatches
// inbound requests to the registered handlers.
type Transport struct {
	cfg Config
	ua  *sipgo.UserAgent
	srv *sipgo.Server
	cli *sipgo.Client

	onInvite func(*sip.Request, sip.ServerTransaction)
	onAck    func(*sip.Request, sip.ServerTransaction)
	onCancel func(*sip.Request, sip.ServerTransaction)
	onBye    func(*sip.Request, sip.ServerTransaction)
	onInfo   func(*sip.Request, sip.ServerTransaction)

	// pendingInvites holds the server transaction for an inbound
	// INVITE between the provisional 180 and the single final response
	// a call is allowed to send (§3 invariant 4) — the state machine
	// resumes asynchronously on stream-initialised, well after the
	// OnInvite callback that owns tx has returned.
	mu             sync.Mutex
	pendingInvites map[string]sip.ServerTransaction
}

// NewTransport builds the UA/server/client and registers request
// dispatch, without starting to listen yet (grounded on the teacher's
// NewUACUAS, pkg/dialog/uacuas.go).
func NewTransport(cfg Config) (*Transport, error) {
	ua, err := sipgo.NewUA(sipgo.WithUserAgent(cfg.UserAgent), sipgo.WithUserAgentHostname(cfg.Host))
	if err != nil {
		return nil, fmt.Errorf("dialog: new user agent: %w", err)
	}
	srv, err := sipgo.NewServer(ua)
	if err != nil {
		return nil, fmt.Errorf("dialog: new server: %w", err)
	}
	cli, err := sipgo.NewClient(ua)
	if err != nil {
		return nil, fmt.Errorf("dialog: new client: %w", err)
	}

	t := &Transport{cfg: cfg, ua: ua, srv: srv, cli: cli, pendingInvites: make(map[string]sip.ServerTransaction)}
	srv.OnInvite(func(req *sip.Request, tx sip.ServerTransaction) {
		t.mu.Lock()
		t.pendingInvites[req.CallID().Value()] = tx
		t.mu.Unlock()
		if t.onInvite != nil {
			t.onInvite(req, tx)
		}
	})
	srv.OnAck(func(req *sip.Request, tx sip.ServerTransaction) {
		if t.onAck != nil {
			t.onAck(req, tx)
		}
	})
	srv.OnCancel(func(req *sip.Request, tx sip.ServerTransaction) {
		if t.onCancel != nil {
			t.onCancel(req, tx)
		}
	})
	srv.OnBye(func(req *sip.Request, tx sip.ServerTransaction) {
		if t.onBye != nil {
			t.onBye(req, tx)
		}
	})
	srv.OnInfo(func(req *sip.Request, tx sip.ServerTransaction) {
		if t.onInfo != nil {
			t.onInfo(req, tx)
		}
	})

	return t, nil
}

// OnInvite/OnAck/OnCancel/OnBye/OnInfo register the dispatch handlers
// pkg/mediacall wires up; a nil handler silently drops the request.
func (t *Transport) OnInvite(h func(*sip.Request, sip.ServerTransaction)) { t.onInvite = h }
func (t *Transport) OnAck(h func(*sip.Request, sip.ServerTransaction))    { t.onAck = h }
func (t *Transport) OnCancel(h func(*sip.Request, sip.ServerTransaction)) { t.onCancel = h }
func (t *Transport) OnBye(h func(*sip.Request, sip.ServerTransaction))    { t.onBye = h }
func (t *Transport) OnInfo(h func(*sip.Request, sip.ServerTransaction))   { t.onInfo = h }

// ListenAndServe starts the configured transport; it blocks until ctx
// is cancelled or the listener fails.
func (t *Transport) ListenAndServe(ctx context.Context) error {
	proto := t.cfg.Transport
	if proto == "" {
		proto = "udp"
	}
	addr := fmt.Sprintf("%s:%d", t.cfg.Host, t.cfg.Port)
	return t.srv.ListenAndServe(ctx, proto, addr)
}

// TransactionRequest sends req as a new client transaction (used for
// INVITE, BYE, INFO — everything except ACK, which is sent outside
// any transaction per RFC 3261 §13.2.2.4).
func (t *Transport) TransactionRequest(ctx context.Context, req *sip.Request) (sip.ClientTransaction, error) {
	return t.cli.TransactionRequest(ctx, req)
}

// WriteRequest sends req directly without starting a transaction
// (ACK on a 2xx response).
func (t *Transport) WriteRequest(req *sip.Request) error {
	return t.cli.WriteRequest(req, sipgo.ClientRequestAddVia)
}

// RespondInTransaction sends the final response on the server
// transaction an earlier INVITE for callID opened, and forgets it —
// at most one final response per inbound INVITE (§3 invariant 4).
func (t *Transport) RespondInTransaction(callID string, resp *sip.Response) error {
	t.mu.Lock()
	tx, ok := t.pendingInvites[callID]
	if ok {
		delete(t.pendingInvites, callID)
	}
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("dialog: no pending INVITE transaction for call %s", callID)
	}
	return tx.Respond(resp)
}

// RespondProvisional sends a non-final (1xx) response without
// consuming the tracked transaction.
func (t *Transport) RespondProvisional(callID string, resp *sip.Response) error {
	t.mu.Lock()
	tx, ok := t.pendingInvites[callID]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("dialog: no pending INVITE transaction for call %s", callID)
	}
	return tx.Respond(resp)
}

// Close tears down client and server.
func (t *Transport) Close() error {
	_ = t.cli.Close()
	return t.srv.Close()
}
