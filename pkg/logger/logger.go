package logger

import (
	"io"
	"log"
	"os"
)

var (
	infoLog  *log.Logger
	warnLog  *log.Logger
	errorLog *log.Logger
	logFile  *os.File
)

// InitFile routes log output to both stdout and the given file.
func InitFile(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	logFile = f
	setup(io.MultiWriter(os.Stdout, f))
	return nil
}

// Close releases the log file if one was opened.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func setup(w io.Writer) {
	infoLog = log.New(w, "INFO: ", log.Ldate|log.Ltime)
	warnLog = log.New(w, "WARN: ", log.Ldate|log.Ltime)
	errorLog = log.New(w, "ERROR: ", log.Ldate|log.Ltime)
}

func Infof(format string, v ...any) {
	if infoLog == nil {
		setup(os.Stdout)
	}
	infoLog.Printf(format, v...)
}

func Warnf(format string, v ...any) {
	if warnLog == nil {
		setup(os.Stdout)
	}
	warnLog.Printf(format, v...)
}

func Errorf(format string, v ...any) {
	if errorLog == nil {
		setup(os.Stdout)
	}
	errorLog.Printf(format, v...)
}
