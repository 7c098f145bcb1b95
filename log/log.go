// Package log provides a minimal key-value logger used by the engine's
// outer layers. Core packages stay pure and do not log.
package log

import (
	"fmt"
	"log"
	"strings"
)

// Root is the default logger used when no explicit logger is configured.
var Root Logger = &Default{}

// Logger is the logging interface. The variadic arguments are key value
// pairs; keys must be strings and values should have a meaningful string
// representation.
type Logger interface {
	Debug(string, ...interface{})
	Info(string, ...interface{})
	Error(string, ...interface{})
	With(...interface{}) Logger
}

// Default logs to the standard library logger with a level prefix.
type Default struct {
	Tags []interface{}
}

func (l *Default) Debug(m string, kv ...interface{}) { log.Print(line("DEBUG ", m, kv, l.Tags)) }
func (l *Default) Info(m string, kv ...interface{})  { log.Print(line("INFO  ", m, kv, l.Tags)) }
func (l *Default) Error(m string, kv ...interface{}) { log.Print(line("ERROR ", m, kv, l.Tags)) }

func (l *Default) With(tags ...interface{}) Logger {
	return &Default{Tags: l.with(tags)}
}

func (l *Default) with(tags []interface{}) []interface{} {
	t := make([]interface{}, 0, len(tags)+len(l.Tags))
	t = append(t, tags...)
	t = append(t, l.Tags...)
	return t
}

// Discard drops all messages. It is handy as a test default.
type Discard struct{}

func (Discard) Debug(string, ...interface{}) {}
func (Discard) Info(string, ...interface{})  {}
func (Discard) Error(string, ...interface{}) {}
func (d Discard) With(...interface{}) Logger { return d }

func line(lvl, msg string, all ...[]interface{}) string {
	var b strings.Builder
	b.WriteString(lvl)
	b.WriteString(msg)
	for _, kv := range all {
		for i := 0; i+1 < len(kv); i += 2 {
			b.WriteByte(' ')
			b.WriteString(fmt.Sprint(kv[i]))
			b.WriteByte('=')
			b.WriteString(fmt.Sprint(kv[i+1]))
		}
	}
	return b.String()
}
