//go:build tinygo

package ra02

import (
	"machine"
)

func init() {
	globalLogger = &serialLogger{tag: "ra02: "}
}

// serialLogger writes straight to machine.Serial, one line per message,
// so TinyGo builds do not link fmt.
type serialLogger struct {
	tag string
}

func (l *serialLogger) log(level, msg string) {
	for _, part := range [...]string{level, l.tag, msg, "\r\n"} {
		machine.Serial.Write([]byte(part))
	}
}

func (l *serialLogger) Debug(msg string) { l.log("D ", msg) }
func (l *serialLogger) Info(msg string)  { l.log("I ", msg) }
func (l *serialLogger) Warn(msg string)  { l.log("W ", msg) }
func (l *serialLogger) Error(msg string) { l.log("E ", msg) }
