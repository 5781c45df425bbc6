// Package term is the console voice of the server: leveled, colored
// output for humans watching the process, distinct from the debug log.
package term

import "github.com/pterm/pterm"

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	lvl      = LevelInfo
	printers = map[Level]pterm.Color{
		LevelDebug: pterm.FgLightCyan,
		LevelInfo:  pterm.FgLightGreen,
		LevelWarn:  pterm.FgYellow,
		LevelError: pterm.FgLightRed,
	}
)

func SetLevel(level Level) {
	lvl = level
}

func output(level Level, a ...interface{}) {
	if lvl > level {
		return
	}
	printers[level].Println(a...)
}

func outputf(level Level, format string, a ...interface{}) {
	if lvl > level {
		return
	}
	printers[level].Printfln(format, a...)
}

func Debug(a ...interface{})                 { output(LevelDebug, a...) }
func Debugf(format string, a ...interface{}) { outputf(LevelDebug, format, a...) }
func Info(a ...interface{})                  { output(LevelInfo, a...) }
func Infof(format string, a ...interface{})  { outputf(LevelInfo, format, a...) }
func Warn(a ...interface{})                  { output(LevelWarn, a...) }
func Warnf(format string, a ...interface{})  { outputf(LevelWarn, format, a...) }

// errors are always printed
func Error(a ...interface{})                 { printers[LevelError].Println(a...) }
func Errorf(format string, a ...interface{}) { printers[LevelError].Printfln(format, a...) }
