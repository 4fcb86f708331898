package testutil

import (
	"context"
	"sync"
)

// SentEmail is one captured template send.
type SentEmail struct {
	To       []string
	Template string
	Data     map[string]any
}

// RecordingEmail captures template sends. Err, when set, is returned from
// every call after recording it.
type RecordingEmail struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func (e *RecordingEmail) Send(_ context.Context, to []string, subject, _ string) error {
	return e.record(SentEmail{To: to, Template: subject})
}

func (e *RecordingEmail) SendTemplate(_ context.Context, to []string, templateName string, data map[string]any) error {
	return e.record(SentEmail{To: to, Template: templateName, Data: data})
}

func (e *RecordingEmail) record(m SentEmail) error {
	e.mu.Lock()
	e.sent = append(e.sent, m)
	e.mu.Unlock()
	return e.Err
}

func (e *RecordingEmail) Sent() []SentEmail {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SentEmail(nil), e.sent...)
}
