package reconcile

import (
	"errors"
	"log"

	"github.com/Blackmamoth/collably-sub000/internal/backend"
)

// GenericFailure is shown for any failure the backend did not explain.
const GenericFailure = "Something went wrong. Please try again."

var ErrClosed = errors.New("reconcile: engine closed")

// Status 작업 결과 상태
type Status int

const (
	StatusOK Status = iota
	// StatusSkipped 로컬 전제조건 미충족 (요소 없음, 임시 id 등) - 조용히 무시
	StatusSkipped
	// StatusRejected 백엔드가 명시적으로 거부
	StatusRejected
	// StatusFailed 전송/서버 오류
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Result is what every mutation entry point reports back to the UI.
type Result struct {
	Op      string
	ID      string
	Status  Status
	Message string
	Err     error
}

// OK reports whether nothing went wrong (a skip is not an error).
func (r Result) OK() bool {
	return r.Status == StatusOK || r.Status == StatusSkipped
}

func okResult(op, id string) Result {
	return Result{Op: op, ID: id, Status: StatusOK}
}

func skipped(op, id, why string) Result {
	return Result{Op: op, ID: id, Status: StatusSkipped, Message: why}
}

// failed classifies err: rejections carry the backend's reason, everything
// else gets the generic message.
func failed(op, id string, err error) Result {
	if rej, ok := backend.AsRejection(err); ok {
		return Result{Op: op, ID: id, Status: StatusRejected, Message: rej.Reason, Err: err}
	}
	return Result{Op: op, ID: id, Status: StatusFailed, Message: GenericFailure, Err: err}
}

// Notifier surfaces user-visible failure messages (toasts).
type Notifier interface {
	Notify(r Result)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Result)

func (f NotifierFunc) Notify(r Result) { f(r) }

// LogNotifier writes failures to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(r Result) {
	log.Printf("[Board] %s %s %s: %s (%v)", r.Op, r.ID, r.Status, r.Message, r.Err)
}
