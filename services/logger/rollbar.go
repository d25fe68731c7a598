// Package logsvc implements core.Logger on top of the std logger, reporting to Rollbar.
package logsvc

import (
	"io"
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/user"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
	levelCritical
)

var levelNames = map[level]string{
	levelDebug:    "DEBUG",
	levelInfo:     "INFO",
	levelWarn:     "WARN",
	levelError:    "ERROR",
	levelCritical: "FATAL",
}

type RollbarLogger struct {
	std      *log.Logger
	minLevel level // below minLevel, entries are neither printed nor reported
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)

	l := &RollbarLogger{std: std, minLevel: levelInfo}
	if conf.Debug {
		l.minLevel = levelDebug
	}
	return l
}

// NewDiscardLogger returns a logger that neither prints nor reports anything. Used in tests.
func NewDiscardLogger() *RollbarLogger {
	rollbar.SetEnabled(false)
	return &RollbarLogger{std: log.New(io.Discard, "", 0), minLevel: levelCritical + 1}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare extracts the User from args & sets it as the Rollbar person.
// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) (rbArgs, printArgs []interface{}) {
	var usrSet bool
	rbArgs = make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	printArgs = make([]interface{}, 0, len(args))
	for _, arg := range args {
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
			printArgs = append(printArgs, "user="+usr.ID)
			continue
		}
		rbArgs = append(rbArgs, arg)
		printArgs = append(printArgs, arg)
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return rbArgs, printArgs
}

func (l *RollbarLogger) log(lvl level, report func(...interface{}), msg string, args []interface{}) bool {
	if lvl < l.minLevel {
		return false
	}
	rbArgs, printArgs := l.prepare(msg, args)
	report(rbArgs...)

	l.std.Printf("%s: %s", levelNames[lvl], msg)
	for _, arg := range printArgs {
		l.std.Printf("  %+v", arg)
	}
	return true
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(levelDebug, rollbar.Debug, msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(levelInfo, rollbar.Info, msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(levelWarn, rollbar.Warning, msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(levelError, rollbar.Error, msg, args)
}

// Fatal reports msg, flushes pending Rollbar items & exits.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(levelCritical, rollbar.Critical, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
