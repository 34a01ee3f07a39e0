package model

import (
	"slices"

	"github.com/and161185/dataexchange/internal/errs"
)

// TimersSegment roots every timer path.
const TimersSegment = "Timers"

// TimerUnit is the default unit of timer entries.
const TimerUnit = "ms"

// EntryBuilder stages the fields of an Entry. It is not safe for
// concurrent use.
type EntryBuilder struct {
	path      []string
	timestamp int64
	value     float64
	hasValue  bool
	url       string
	unit      string
	status    Status
	hasStatus bool
}

// NewEntryBuilder returns a builder for an entry at path. The path is copied.
func NewEntryBuilder(path []string, timestamp int64) (*EntryBuilder, error) {
	if len(path) == 0 {
		return nil, errs.InvalidArgument("path must not be empty")
	}
	return &EntryBuilder{path: slices.Clone(path), timestamp: timestamp}, nil
}

// NewEntryBuilderNow is NewEntryBuilder stamped with the current time.
func NewEntryBuilderNow(path []string) (*EntryBuilder, error) {
	return NewEntryBuilder(path, Now())
}

func (b *EntryBuilder) SetValue(v float64) *EntryBuilder {
	b.value, b.hasValue = v, true
	return b
}

func (b *EntryBuilder) ClearValue() *EntryBuilder {
	b.value, b.hasValue = 0, false
	return b
}

func (b *EntryBuilder) SetURL(url string) *EntryBuilder {
	b.url = url
	return b
}

func (b *EntryBuilder) SetUnit(unit string) *EntryBuilder {
	b.unit = unit
	return b
}

func (b *EntryBuilder) SetStatus(s Status) *EntryBuilder {
	b.status, b.hasStatus = s, true
	return b
}

func (b *EntryBuilder) ClearStatus() *EntryBuilder {
	b.status, b.hasStatus = Status{}, false
	return b
}

func (b *EntryBuilder) Path() []string   { return slices.Clone(b.path) }
func (b *EntryBuilder) Timestamp() int64 { return b.timestamp }

// Build snapshots the builder. Later changes to the builder do not affect
// the returned entry.
func (b *EntryBuilder) Build() Entry {
	return Entry{
		path:      slices.Clone(b.path),
		timestamp: b.timestamp,
		value:     b.value,
		hasValue:  b.hasValue,
		url:       b.url,
		unit:      b.unit,
		status:    b.status,
		hasStatus: b.hasStatus,
	}
}

// TimerBuilder measures elapsed wall time into an entry under "Timers".
type TimerBuilder struct {
	EntryBuilder
}

// StartTimer starts a timer at [Timers, name].
func StartTimer(name string) (*TimerBuilder, error) {
	return StartTimerUnder(nil, name)
}

// StartScriptTimer starts a timer at [script, Timers, name].
func StartScriptTimer(script, name string) (*TimerBuilder, error) {
	if script == "" {
		return nil, errs.InvalidArgument("script name must not be empty")
	}
	return StartTimerUnder([]string{script}, name)
}

// StartTimerUnder starts a timer at parent + [Timers, name].
func StartTimerUnder(parent []string, name string) (*TimerBuilder, error) {
	if name == "" {
		return nil, errs.InvalidArgument("timer name must not be empty")
	}
	path := make([]string, 0, len(parent)+2)
	path = append(path, parent...)
	path = append(path, TimersSegment, name)

	eb, err := NewEntryBuilder(path, Now())
	if err != nil {
		return nil, err
	}
	eb.SetUnit(TimerUnit)
	return &TimerBuilder{EntryBuilder: *eb}, nil
}

// Stop sets the value to the milliseconds elapsed since the timer started
// and builds the entry. It may be called more than once.
func (t *TimerBuilder) Stop() Entry {
	t.SetValue(float64(Now() - t.timestamp))
	return t.Build()
}

// ShiftEntry returns e with its timestamp moved by difference milliseconds.
func ShiftEntry(e Entry, difference int64) Entry {
	shifted := e
	shifted.path = slices.Clone(e.path)
	shifted.timestamp += difference
	return shifted
}
