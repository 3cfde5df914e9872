package app

import (
	"github.com/atotto/clipboard"

	"github.com/teranos/coflow/errors"
	"github.com/teranos/coflow/logger"
	"github.com/teranos/coflow/metrics"
)

// Share notification messages
const (
	MsgShareCopied = "Flow ID copied to clipboard"
	MsgShareFailed = "Failed to copy to clipboard"
)

// Clipboard receives exported share codes
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard writes to the operating system clipboard
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errors.New("clipboard is not supported on this system")
	}
	return clipboard.WriteAll(text)
}

// Notifier shows transient notifications
type Notifier interface {
	Notify(n Notification)
}

// Notification is a transient message for the user
type Notification struct {
	Message string
	Failed  bool
	Err     error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier reports notifications to the logger
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Failed {
		logger.Logger.Warnw(n.Message, logger.FieldError, n.Err)
		return
	}
	logger.Logger.Infow(n.Message)
}

// Share copies the active flow id to the clipboard. The outcome is reported
// through the notifier, never returned. Does nothing without an active flow.
func (m *Manager) Share() {
	id := m.Status().FlowID
	if id == "" {
		m.logger.Debugw("Ignoring share without active flow", logger.FieldError, errors.ErrNoActiveFlow)
		return
	}

	if err := m.clipboard.WriteAll(id); err != nil {
		m.logger.Errorw("Failed to copy to clipboard", logger.FieldFlowID, id, logger.FieldError, err)
		m.metrics.RecordFlowOperation("share", metrics.ResultFailed)
		m.notifier.Notify(Notification{Message: MsgShareFailed, Failed: true, Err: err})
		return
	}
	m.metrics.RecordFlowOperation("share", metrics.ResultOK)
	m.notifier.Notify(Notification{Message: MsgShareCopied})
}
