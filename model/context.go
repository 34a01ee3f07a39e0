package model

import (
	"strings"
	"time"

	"github.com/and161185/dataexchange/internal/utils"
)

// Context describes the environment an entry was produced in.
type Context struct {
	Hardware   string
	OS         string
	Software   string
	Location   string
	Script     string
	InstanceID string
}

// Platform returns "hardware-os", or whichever of the two is set.
func (c Context) Platform() string {
	switch {
	case c.Hardware != "" && c.OS != "":
		return c.Hardware + "-" + c.OS
	case c.Hardware != "":
		return c.Hardware
	default:
		return c.OS
	}
}

// ContextFromLine parses sep-separated fields in the order hardware, os,
// software, location, script, instance id. Missing trailing fields stay empty.
func ContextFromLine(line string, sep rune) Context {
	fields := strings.Split(line, string(sep))
	at := func(i int) string {
		if i < len(fields) {
			return utils.Escape(strings.TrimSpace(fields[i]))
		}
		return ""
	}
	return Context{
		Hardware:   at(0),
		OS:         at(1),
		Software:   at(2),
		Location:   at(3),
		Script:     at(4),
		InstanceID: at(5),
	}
}

type ContextBuilder struct {
	ctx Context
}

func NewContextBuilder() *ContextBuilder { return &ContextBuilder{} }

func (b *ContextBuilder) SetHardware(v string) *ContextBuilder {
	b.ctx.Hardware = v
	return b
}

func (b *ContextBuilder) SetOS(v string) *ContextBuilder {
	b.ctx.OS = v
	return b
}

func (b *ContextBuilder) SetSoftware(v string) *ContextBuilder {
	b.ctx.Software = v
	return b
}

func (b *ContextBuilder) SetLocation(v string) *ContextBuilder {
	b.ctx.Location = v
	return b
}

func (b *ContextBuilder) SetScript(v string) *ContextBuilder {
	b.ctx.Script = v
	return b
}

func (b *ContextBuilder) SetInstanceID(v string) *ContextBuilder {
	b.ctx.InstanceID = v
	return b
}

func (b *ContextBuilder) Build() Context { return b.ctx }

// Session is an open ingestion session on the collector server.
type Session struct {
	ID        string
	Context   Context
	CreatedAt time.Time
}
