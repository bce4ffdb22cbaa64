package engine

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrorType is an operator-facing hint attached to failed phase records.
// It never changes halting: every failure halts and recovery is always a
// new run for the same window.
type ErrorType string

const (
	ErrorTransient     ErrorType = "transient"
	ErrorPermanent     ErrorType = "permanent"
	ErrorConfiguration ErrorType = "configuration"
)

var transientIndicators = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"network",
	"temporary",
	"lock",
	"busy",
	"throttle",
	"rate limit",
	"unavailable",
}

var configurationIndicators = []string{
	"authentication",
	"permission",
	"denied",
	"unauthorized",
	"credentials",
	"invalid password",
}

// ClassifyMessage tags a failure message. Unknown messages are permanent.
func ClassifyMessage(msg string) ErrorType {
	lower := strings.ToLower(msg)
	for _, s := range transientIndicators {
		if strings.Contains(lower, s) {
			return ErrorTransient
		}
	}
	for _, s := range configurationIndicators {
		if strings.Contains(lower, s) {
			return ErrorConfiguration
		}
	}
	return ErrorPermanent
}

// Classify tags an error, looking at its chain before its message.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrorTransient
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return ErrorTransient
	}
	return ClassifyMessage(err.Error())
}
