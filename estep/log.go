package estep

import (
	"io"
	"log"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[log.Logger]

func init() {
	logger.Store(log.New(os.Stderr, "estep: ", log.LstdFlags))
}

// SetLogger replaces the logger that receives degeneracy warnings. A nil
// logger discards them.
func SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	logger.Store(l)
}

// SetLogFile appends degeneracy warnings to the named file.
func SetLogFile(filename string) error {
	outfile, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	SetLogger(log.New(outfile, "estep: ", log.LstdFlags))
	return nil
}

func warnf(format string, v ...interface{}) {
	logger.Load().Printf("warning: "+format, v...)
}
