package gitsync

import "strings"

// ErrorKind is the enumerated result of classifying a failed git operation.
type ErrorKind int

const (
	// KindNone means the operation did not fail.
	KindNone ErrorKind = iota
	// KindNetwork marks a transient network failure worth retrying.
	KindNetwork
	// KindFatal marks everything else (auth, conflicts, bad refs); these
	// surface immediately for the operator to resolve.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	default:
		return "fatal"
	}
}

// networkPatterns are the stderr fragments git emits for transient network
// failures. Substring matching on process output is a pragmatic heuristic;
// it lives behind this one function so it can be swapped for exit-code
// classification without touching the retry logic.
var networkPatterns = []string{
	"could not resolve host",
	"could not resolve hostname",
	"temporary failure in name resolution",
	"connection refused",
	"connection timed out",
	"operation timed out",
	"connection reset by peer",
	"network is unreachable",
	"unable to access",
}

// classify maps a failed operation's output text to an error kind.
func classify(output string) ErrorKind {
	lower := strings.ToLower(output)
	for _, pattern := range networkPatterns {
		if strings.Contains(lower, pattern) {
			return KindNetwork
		}
	}
	return KindFatal
}
