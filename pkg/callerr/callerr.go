// Package callerr implements the error taxonomy of §7: peer
// unreachable/declined, protocol incompatibility, encryption
// incompatibility, malformed SDP, per-section failure, backend
// failure, and transport errors. Every error surfaced to a host carries
// a user-facing Title/Detail pair plus enough machine-readable state
// (SIP code, parsed ms-diagnostics reason) to decide whether to retry.
package callerr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Category buckets an error the way §7 does.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryPeerDeclined
	CategoryProtocolIncompatible
	CategoryEncryptionIncompatible
	CategoryMalformedSDP
	CategorySectionFailed
	CategoryBackend
	CategoryTransport
)

// CallError is the error type every fatal call-level failure is
// surfaced as. It is never silently swallowed (§7).
type CallError struct {
	Category Category
	Title    string
	Detail   string
	SIPCode  int
	Retry    bool
	cause    error
}

func (e *CallError) Error() string {
	if e.SIPCode != 0 {
		return fmt.Sprintf("%s: %s (SIP %d)", e.Title, e.Detail, e.SIPCode)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *CallError) Unwrap() error { return e.cause }

// New builds a CallError with no SIP response behind it (e.g. a local
// backend failure).
func New(cat Category, title, detail string) *CallError {
	return &CallError{Category: cat, Title: title, Detail: detail}
}

// Wrap attaches a cause to a CallError for errors.Is/As chains.
func Wrap(cat Category, title, detail string, cause error) *CallError {
	return &CallError{Category: cat, Title: title, Detail: detail, cause: cause}
}

// Diagnostics is a parsed ms-diagnostics / ms-client-diagnostics
// header value: "<code>;reason=\"<text>\";source=\"...\"".
type Diagnostics struct {
	Code   int
	Reason string
	Raw    string
}

// ParseDiagnostics parses the semicolon-delimited ms-diagnostics /
// ms-client-diagnostics header value. Returns the zero value (Code==0)
// if header is empty; malformed trailing fields are ignored rather
// than rejected, since only Code and the reason= field are load-bearing
// for the response-handling table in spec.md §4.4.
func ParseDiagnostics(header string) Diagnostics {
	d := Diagnostics{Raw: header}
	header = strings.TrimSpace(header)
	if header == "" {
		return d
	}
	parts := strings.Split(header, ";")
	if code, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		d.Code = code
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if rest, ok := strings.CutPrefix(p, "reason="); ok {
			d.Reason = strings.Trim(rest, `"`)
		}
	}
	return d
}

// ResponseOutcome is what FromResponse decided should happen for a
// >=400 response to an outbound INVITE, per spec.md §4.4's table.
type ResponseOutcome struct {
	Err         *CallError
	RetryICE    bool // retry the call under the other ICE version
	RetryReason string
}

// FromResponse maps a failure response on the first (cseq==1) or
// later outbound INVITE to an outcome, implementing spec.md §4.4's
// per-code response table and §8 invariant 1 (retry only on cseq==1).
func FromResponse(code int, reasonPhrase string, diag Diagnostics, clientDiag Diagnostics, cseq uint32, msWarningCode int) ResponseOutcome {
	firstAttempt := cseq == 1

	switch {
	case code == 480:
		if msWarningCode == 391 {
			return ResponseOutcome{Err: New(CategoryPeerDeclined, "Unavailable", "does not want to be disturbed")}
		}
		return ResponseOutcome{Err: New(CategoryPeerDeclined, "Unavailable", "unavailable")}

	case code == 603 || code == 605:
		return ResponseOutcome{Err: New(CategoryPeerDeclined, "Call rejected", "rejected by user")}

	case code == 415 && firstAttempt && strings.Contains(reasonPhrase, "Mutipart mime in content type not supported by Archiving CDR service"):
		return ResponseOutcome{RetryICE: true, RetryReason: "415 multipart unsupported, retry ICEv6"}

	case code == 488 && (reasonPhrase == "Encryption Levels not compatible" || clientDiag.Code == 52017):
		return ResponseOutcome{Err: New(CategoryEncryptionIncompatible, "Encryption Levels not compatible", "peer cannot satisfy the negotiated encryption policy")}

	case code == 488 && firstAttempt && diag.Code == 7008:
		return ResponseOutcome{RetryICE: true, RetryReason: "488/7008, retry ICEv19"}

	default:
		detail := fmt.Sprintf("%d %s", code, reasonPhrase)
		if diag.Code != 0 {
			detail += fmt.Sprintf(" (%s)", diag.Reason)
		}
		return ResponseOutcome{Err: &CallError{Category: CategoryUnknown, Title: "Call failed", Detail: detail, SIPCode: code}}
	}
}

// MalformedSDP is returned when an inbound SDP body fails to parse;
// callers map it to 488 Not Acceptable Here per §7.
func MalformedSDP(cause error) *CallError {
	return Wrap(CategoryMalformedSDP, "Not Acceptable Here", "could not parse SDP body", cause)
}

// EncryptionRejectedInbound is the inbound counterpart of the
// encryption-incompatible outcome: local policy required, remote
// rejected (§3, §4.4.1, S3).
func EncryptionRejectedInbound() *CallError {
	return New(CategoryEncryptionIncompatible, "Encryption Levels not compatible", "local policy requires encryption, remote rejected it")
}

// BackendFailure surfaces a "create stream" or similar backend error
// per §7.
func BackendFailure(op string, cause error) *CallError {
	return Wrap(CategoryBackend, "Media error", fmt.Sprintf("backend %s failed", op), cause)
}

// Is supports errors.Is comparisons by category: it reports true when
// target is a *CallError with the same Category.
func (e *CallError) Is(target error) bool {
	var other *CallError
	if errors.As(target, &other) {
		return e.Category == other.Category
	}
	return false
}
