package model

import (
	"fmt"

	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/utils"
)

// State is the pass/fail outcome of a status.
type State int

const (
	StateUnset State = iota
	StatePass
	StateFail
)

func (s State) String() string {
	switch s {
	case StatePass:
		return "Pass"
	case StateFail:
		return "Fail"
	default:
		return ""
	}
}

// ParseState accepts exactly "", "Pass" and "Fail".
func ParseState(s string) (State, error) {
	switch s {
	case "":
		return StateUnset, nil
	case StatePass.String():
		return StatePass, nil
	case StateFail.String():
		return StateFail, nil
	}
	return StateUnset, errs.InvalidArgument("%s is an invalid state value. Valid values are: %s, %s",
		s, StatePass, StateFail)
}

// Status is an immutable pass/fail record attached to an entry.
type Status struct {
	code    string
	message string
	state   State
}

func (s Status) Code() string    { return s.code }
func (s Status) Message() string { return s.message }
func (s Status) State() State    { return s.state }

// Equal reports whether both statuses carry the same data.
func (s Status) Equal(o Status) bool { return s == o }

func (s Status) String() string {
	return fmt.Sprintf("Status{code=%q message=%q state=%q}", s.code, s.message, s.state)
}

// StatusBuilder stages a Status. The state is validated on assignment.
type StatusBuilder struct {
	code    string
	message string
	state   State
}

// NewStatusBuilder returns an empty builder.
func NewStatusBuilder() *StatusBuilder { return &StatusBuilder{} }

func (b *StatusBuilder) SetCode(code string) *StatusBuilder {
	b.code = code
	return b
}

func (b *StatusBuilder) SetMessage(message string) *StatusBuilder {
	b.message = message
	return b
}

// SetState assigns the state from its display form. Anything other than
// "", "Pass" or "Fail" is rejected and leaves the builder unchanged.
func (b *StatusBuilder) SetState(state string) error {
	st, err := ParseState(state)
	if err != nil {
		return err
	}
	b.state = st
	return nil
}

func (b *StatusBuilder) SetStateValue(state State) *StatusBuilder {
	b.state = state
	return b
}

func (b *StatusBuilder) Code() string    { return b.code }
func (b *StatusBuilder) Message() string { return b.message }
func (b *StatusBuilder) State() State    { return b.state }

// Build snapshots the builder into an immutable Status.
func (b *StatusBuilder) Build() Status {
	return Status{code: b.code, message: b.message, state: b.state}
}

// NewStatus builds a status from raw strings, sanitizing code and message.
func NewStatus(code, message, state string) (Status, error) {
	b := NewStatusBuilder().
		SetCode(utils.Escape(code)).
		SetMessage(utils.Escape(message))
	if err := b.SetState(state); err != nil {
		return Status{}, err
	}
	return b.Build(), nil
}

// StatusFromError builds a Fail status carrying err's message, or a Pass
// status when err is nil.
func StatusFromError(code string, err error) Status {
	b := NewStatusBuilder().SetCode(utils.Escape(code))
	if err != nil {
		b.SetStateValue(StateFail).SetMessage(err.Error())
	} else {
		b.SetStateValue(StatePass)
	}
	return b.Build()
}
