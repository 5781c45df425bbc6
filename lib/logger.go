package lib

import "testing"

// Logger receives debug traces. A *log.Logger satisfies it.
type Logger interface {
	Print(a ...any)
	Println(a ...any)
	Printf(format string, a ...any)
}

// NoLog discards everything.
type NoLog struct{}

func (l *NoLog) Print(a ...any)                 {}
func (l *NoLog) Println(a ...any)               {}
func (l *NoLog) Printf(format string, a ...any) {}

// TestLogger sends traces to the test output, tagged with a prefix so
// interleaved components stay readable.
type TestLogger struct {
	t      testing.TB
	prefix string
}

func NewTestLogger(t testing.TB, prefix string) *TestLogger {
	return &TestLogger{
		t:      t,
		prefix: prefix,
	}
}

func (l *TestLogger) Print(a ...any) {
	if l.prefix != "" {
		a = append([]any{l.prefix + ":"}, a...)
	}
	l.t.Log(a...)
}

func (l *TestLogger) Println(a ...any) {
	l.Print(a...)
}

func (l *TestLogger) Printf(format string, a ...any) {
	if l.prefix != "" {
		format = l.prefix + ": " + format
	}
	l.t.Logf(format, a...)
}
