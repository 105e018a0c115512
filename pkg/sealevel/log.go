package sealevel

import (
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

// Logger receives program log messages.
type Logger interface {
	Log(s string)
}

// LogRecorder collects program logs in memory.
type LogRecorder struct {
	Logs []string
}

func (r *LogRecorder) Log(s string) {
	r.Logs = append(r.Logs, s)
}

func (r *LogRecorder) String() string {
	return strings.Join(r.Logs, "\n")
}

// KlogLogger forwards program logs to klog, optionally teeing into a
// recorder so callers still see them in results.
type KlogLogger struct {
	Prefix string
	Tee    *LogRecorder
}

func (l *KlogLogger) Log(s string) {
	klog.Infof("%s%s", l.Prefix, s)
	if l.Tee != nil {
		l.Tee.Log(s)
	}
}

func logInvoke(log Logger, programId fmt.Stringer, stackHeight uint64) {
	log.Log(fmt.Sprintf("Program %s invoke [%d]", programId, stackHeight))
}

func logSuccess(log Logger, programId fmt.Stringer) {
	log.Log(fmt.Sprintf("Program %s success", programId))
}

func logFailure(log Logger, programId fmt.Stringer, err error) {
	log.Log(fmt.Sprintf("Program %s failed: %s", programId, err))
}

func logConsumed(log Logger, programId fmt.Stringer, consumed, limit uint64) {
	log.Log(fmt.Sprintf("Program %s consumed %d of %d compute units", programId, consumed, limit))
}

type multiLogger []Logger

func (m multiLogger) Log(s string) {
	for _, l := range m {
		l.Log(s)
	}
}
