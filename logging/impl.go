package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl fans every entry out to its appenders. Subloggers share the appender set with their
// parent, so an appender added to either one receives the entries of both.
type impl struct {
	name      string
	level     AtomicLevel
	inUTC     bool
	appenders *appenderSet
}

// appenderSet is the appender list shared by a logger and its subloggers.
type appenderSet struct {
	mu   sync.RWMutex
	list []Appender
}

func newAppenderSet(appenders ...Appender) *appenderSet {
	return &appenderSet{list: appenders}
}

func (set *appenderSet) add(appender Appender) {
	set.mu.Lock()
	defer set.mu.Unlock()
	set.list = append(set.list, appender)
}

// snapshot returns the current appenders. Later additions do not change the returned slice.
func (set *appenderSet) snapshot() []Appender {
	set.mu.RLock()
	defer set.mu.RUnlock()
	return set.list[:len(set.list):len(set.list)]
}

// callerSkip is the number of frames between runtime.Caller in emit and the caller of a
// public logging method.
const callerSkip = 3

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders.add(appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders.snapshot() {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// emit builds the entry and hands it to every appender. Appender failures go to stderr since
// there is nowhere else to report them.
func (imp *impl) emit(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    msg,
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	if pc, file, line, ok := runtime.Caller(callerSkip); ok {
		entry.Caller = zapcore.NewEntryCaller(pc, file, line, true)
		if fn := runtime.FuncForPC(pc); fn != nil {
			entry.Caller.Function = fn.Name()
		}
	}
	for _, appender := range imp.appenders.snapshot() {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up keysAndValues. A trailing key without a value is kept with an error value so
// the mistake shows in the output.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) print(level Level, args []interface{}) {
	if imp.enabled(level) {
		imp.emit(level, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) printf(level Level, template string, args []interface{}) {
	if imp.enabled(level) {
		imp.emit(level, fmt.Sprintf(template, args...), nil)
	}
}

// printw emits when the level is enabled or force is set.
func (imp *impl) printw(level Level, force bool, msg string, fields []zapcore.Field) {
	if force || imp.enabled(level) {
		imp.emit(level, msg, fields)
	}
}

func (imp *impl) Debug(args ...interface{}) { imp.print(DEBUG, args) }
func (imp *impl) Debugf(template string, args ...interface{}) { imp.printf(DEBUG, template, args) }
func (imp *impl) Debugw(msg string, kv ...interface{}) { imp.printw(DEBUG, false, msg, toFields(kv)) }
func (imp *impl) Info(args ...interface{}) { imp.print(INFO, args) }
func (imp *impl) Infof(template string, args ...interface{}) { imp.printf(INFO, template, args) }
func (imp *impl) Infow(msg string, kv ...interface{}) { imp.printw(INFO, false, msg, toFields(kv)) }
func (imp *impl) Warn(args ...interface{}) { imp.print(WARN, args) }
func (imp *impl) Warnf(template string, args ...interface{}) { imp.printf(WARN, template, args) }
func (imp *impl) Warnw(msg string, kv ...interface{}) { imp.printw(WARN, false, msg, toFields(kv)) }
func (imp *impl) Error(args ...interface{}) { imp.print(ERROR, args) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.printf(ERROR, template, args) }
func (imp *impl) Errorw(msg string, kv ...interface{}) { imp.printw(ERROR, false, msg, toFields(kv)) }

// CDebugw logs at debug level when the logger is at debug level or ctx is in debug mode. The
// debug key of the context is added as the "debug_key" field.
func (imp *impl) CDebugw(ctx context.Context, msg string, kv ...interface{}) {
	fields := toFields(kv)
	key := GetName(ctx)
	if key != "" {
		fields = append(fields, zap.String("debug_key", key))
	}
	imp.printw(DEBUG, key != "", msg, fields)
}

// formatLine renders an entry as tab separated columns followed by its fields as one JSON
// object. Fields keep their order.
func formatLine(entry zapcore.Entry, fields []zapcore.Field, withEmptyName bool) (string, error) {
	cols := []string{entry.Time.Format(DefaultTimeFormatStr), strings.ToUpper(entry.Level.String())}
	if entry.LoggerName != "" || withEmptyName {
		cols = append(cols, entry.LoggerName)
	}
	if entry.Caller.Defined {
		cols = append(cols, entry.Caller.TrimmedPath())
	}
	cols = append(cols, entry.Message)
	if len(fields) == 0 {
		return strings.Join(cols, "\t"), nil
	}
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := enc.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return strings.Join(cols, "\t"), err
	}
	defer buf.Free()
	return strings.Join(append(cols, buf.String()), "\t"), nil
}
