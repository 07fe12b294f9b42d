package utils

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorGray   = "\033[90m"
)

var debugEnabled atomic.Bool

// SetDebug toggles LogDebug output.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

func format(message string, args []interface{}) string {
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

func LogInfo(component, message string, args ...interface{}) {
	log.Printf("%s[INFO]%s %s[%s]%s %s",
		ColorBlue, ColorReset,
		ColorCyan, component, ColorReset,
		format(message, args))
}

func LogSuccess(component, message string, args ...interface{}) {
	log.Printf("%s[SUCCESS]%s %s[%s]%s %s",
		ColorGreen, ColorReset,
		ColorCyan, component, ColorReset,
		format(message, args))
}

func LogWarning(component, message string, args ...interface{}) {
	log.Printf("%s[WARNING]%s %s[%s]%s %s",
		ColorYellow, ColorReset,
		ColorCyan, component, ColorReset,
		format(message, args))
}

func LogError(component, message string, err error) {
	if err != nil {
		log.Printf("%s[ERROR]%s %s[%s]%s %s: %s%v%s",
			ColorRed, ColorReset,
			ColorCyan, component, ColorReset,
			message,
			ColorRed, err, ColorReset)
	} else {
		log.Printf("%s[ERROR]%s %s[%s]%s %s",
			ColorRed, ColorReset,
			ColorCyan, component, ColorReset,
			message)
	}
}

func LogDebug(component, message string, args ...interface{}) {
	if !debugEnabled.Load() {
		return
	}
	log.Printf("%s[DEBUG]%s %s[%s]%s %s",
		ColorPurple, ColorReset,
		ColorCyan, component, ColorReset,
		format(message, args))
}

// LogRequest logs an incoming protocol operation. identity may be empty
// for operations that run before login.
func LogRequest(operation, remote, identity string) {
	if identity == "" {
		identity = "-"
	}
	log.Printf("%s[REQUEST]%s %s%s%s %s | Identity: %s%s%s",
		ColorCyan, ColorReset,
		ColorWhite, operation, ColorReset,
		remote,
		ColorYellow, identity, ColorReset)
}

func LogResponse(operation string, status bool, duration time.Duration) {
	color := ColorGreen
	if !status {
		color = ColorYellow
	}

	log.Printf("%s[RESPONSE]%s %s | Status: %s%t%s | Duration: %s%v%s",
		ColorGray, ColorReset,
		operation,
		color, status, ColorReset,
		ColorWhite, duration, ColorReset)
}

// LogDB logs a storage write and the key it touched, a CPF or a transfer id.
func LogDB(operation, key string) {
	log.Printf("%s[DB]%s %s[%s]%s key=%s",
		ColorGray, ColorReset,
		ColorWhite, operation, ColorReset,
		key)
}
