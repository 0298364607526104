package dbcore

import "github.com/sirupsen/logrus"

// log is the package-wide structured logger. The buffer pool logs blocking,
// deadlock aborts, eviction, commit and abort; the heap file logs page
// allocation and read failures; table statistics warn about fields with no
// histogram. Callers embedding this package can redirect output with
// SetLogger.
var log = logrus.New()

func init() {
	log.SetLevel(logrus.WarnLevel)
}

// SetLogger replaces the package logger, e.g. so a host application can
// route buffer-pool diagnostics into its own logging pipeline.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}
