package notify

import (
	"context"
	"sync"

	"github.com/5-logic/the-sync-frontend-sub001/observe"
)

// Notifier receives toggle outcome notifications.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: delivery failures are the implementation's concern.
type Notifier interface {
	Success(title, body string)
	Error(title, body string)
}

// Level distinguishes success from error notifications.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Func adapts a function to a Notifier.
type Func func(level Level, title, body string)

func (f Func) Success(title, body string) { f(LevelSuccess, title, body) }
func (f Func) Error(title, body string)   { f(LevelError, title, body) }

// Nop discards notifications.
type Nop struct{}

func (Nop) Success(string, string) {}
func (Nop) Error(string, string)   {}

// Log writes notifications to a structured logger.
type Log struct {
	logger observe.Logger
}

// NewLog creates a notifier that logs successes at Info and errors at Warn.
func NewLog(logger observe.Logger) *Log {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Log{logger: logger}
}

func (l *Log) Success(title, body string) {
	l.logger.Info(context.Background(), title, observe.F("notification", string(LevelSuccess)), observe.F("body", body))
}

func (l *Log) Error(title, body string) {
	l.logger.Warn(context.Background(), title, observe.F("notification", string(LevelError)), observe.F("body", body))
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Success(title, body string) {
	for _, n := range m {
		if n != nil {
			n.Success(title, body)
		}
	}
}

func (m Multi) Error(title, body string) {
	for _, n := range m {
		if n != nil {
			n.Error(title, body)
		}
	}
}

// Message is one recorded notification.
type Message struct {
	Level Level
	Title string
	Body  string
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Success(title, body string) { r.add(LevelSuccess, title, body) }
func (r *Recorder) Error(title, body string)   { r.add(LevelError, title, body) }

func (r *Recorder) add(level Level, title, body string) {
	r.mu.Lock()
	r.messages = append(r.messages, Message{Level: level, Title: title, Body: body})
	r.mu.Unlock()
}

// Messages returns a copy of the recorded notifications.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Count returns how many notifications of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Level == level {
			n++
		}
	}
	return n
}

var (
	_ Notifier = Func(nil)
	_ Notifier = Nop{}
	_ Notifier = (*Log)(nil)
	_ Notifier = Multi(nil)
	_ Notifier = (*Recorder)(nil)
)
