package monitoring

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/and161185/dataexchange/internal/utils"
	"github.com/and161185/dataexchange/internal/xmlentries"
	"github.com/and161185/dataexchange/model"
)

// Builder configures a Helper.
type Builder struct {
	supplier   Supplier
	sink       Sink
	scriptName string
	parentPath []string
	charset    string
	logger     *zap.SugaredLogger
	verbose    bool
	clock      func() int64
}

func NewBuilder(supplier Supplier, sink Sink) *Builder {
	return &Builder{supplier: supplier, sink: sink}
}

// ScriptName is prepended to every path.
func (b *Builder) ScriptName(name string) *Builder {
	b.scriptName = name
	return b
}

func (b *Builder) ParentPath(path ...string) *Builder {
	b.parentPath = slices.Clone(path)
	return b
}

func (b *Builder) Charset(charset string) *Builder {
	b.charset = charset
	return b
}

// Logger receives tick failures when verbose is on.
func (b *Builder) Logger(l *zap.SugaredLogger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) Verbose(v bool) *Builder {
	b.verbose = v
	return b
}

// Clock overrides the millisecond clock used to stamp executions.
func (b *Builder) Clock(now func() int64) *Builder {
	b.clock = now
	return b
}

func (b *Builder) Build() (*Helper, error) {
	if b.supplier == nil {
		return nil, errors.New("monitoring supplier is nil")
	}
	if b.sink == nil {
		return nil, errors.New("monitoring sink is nil")
	}
	if err := xmlentries.ValidateCharset(b.charset); err != nil {
		return nil, err
	}

	path := make([]string, 0, len(b.parentPath)+1)
	if b.scriptName != "" {
		path = append(path, utils.Escape(b.scriptName))
	}
	path = append(path, utils.EscapePath(b.parentPath)...)

	charset := b.charset
	if charset == "" {
		charset = xmlentries.DefaultCharset
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	clock := b.clock
	if clock == nil {
		clock = func() int64 { return model.Now() }
	}

	h := &Helper{
		supplier: b.supplier,
		sink:     b.sink,
		path:     path,
		charset:  charset,
		logger:   logger,
		clock:    clock,
		script:   b.scriptName,
	}
	h.verbose.Store(b.verbose)
	return h, nil
}
