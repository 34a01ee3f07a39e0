package rest

import (
	"strings"

	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/utils"
	"github.com/and161185/dataexchange/model"
)

// PathToString joins path with sep.
func PathToString(path []string, sep rune) (string, error) {
	if len(path) == 0 {
		return "", errs.InvalidArgument("Path cannot be empty")
	}
	return strings.Join(path, string(sep)), nil
}

// PathFromString splits s on sep and sanitizes every segment.
func PathFromString(s string, sep rune) ([]string, error) {
	if s == "" {
		return nil, errs.InvalidArgument("Path is null or empty.")
	}
	return utils.EscapePath(strings.Split(s, string(sep))), nil
}

// DisplayPath renders the entry path joined with '/'.
func DisplayPath(e model.Entry) string {
	return strings.Join(e.Path(), string(DisplaySeparator))
}

// EntryToProperties encodes e. Path segments and unit are sanitized; the
// status message and URL are sent as is.
func EntryToProperties(e model.Entry) (EntryProperties, error) {
	path, err := PathToString(utils.EscapePath(e.Path()), PathSeparator)
	if err != nil {
		return EntryProperties{}, err
	}
	ts := e.Timestamp()
	p := EntryProperties{
		Path:      path,
		Timestamp: &ts,
		URL:       e.URL(),
		Unit:      utils.Escape(e.Unit()),
	}
	if v, ok := e.Value(); ok {
		p.Value = utils.F64Ptr(v)
	}
	if st, ok := e.Status(); ok {
		sp := StatusToProperties(st)
		p.Status = &sp
	}
	return p, nil
}

// EntryFromProperties decodes p. Path and timestamp are required.
func EntryFromProperties(p EntryProperties) (model.Entry, error) {
	if p.Path == "" {
		return model.Entry{}, errs.InvalidArgument("Missing path entry.")
	}
	if p.Timestamp == nil {
		return model.Entry{}, errs.InvalidArgument("Missing entry timestamp.")
	}
	path, err := PathFromString(p.Path, PathSeparator)
	if err != nil {
		return model.Entry{}, err
	}
	b, err := model.NewEntryBuilder(path, *p.Timestamp)
	if err != nil {
		return model.Entry{}, err
	}
	if p.Value != nil {
		b.SetValue(*p.Value)
	}
	b.SetURL(p.URL).SetUnit(utils.Escape(p.Unit))
	if p.Status != nil {
		st, ok, err := StatusFromProperties(*p.Status)
		if err != nil {
			return model.Entry{}, err
		}
		if ok {
			b.SetStatus(st)
		}
	}
	return b.Build(), nil
}

// EntriesToProperties encodes a batch for sessionID.
func EntriesToProperties(sessionID string, entries []model.Entry) (EntriesProperties, error) {
	out := EntriesProperties{SessionID: sessionID, Entries: make([]EntryProperties, 0, len(entries))}
	for _, e := range entries {
		p, err := EntryToProperties(e)
		if err != nil {
			return EntriesProperties{}, err
		}
		out.Entries = append(out.Entries, p)
	}
	return out, nil
}

// EntriesFromProperties decodes a batch, failing on the first bad entry.
func EntriesFromProperties(ps []EntryProperties) ([]model.Entry, error) {
	out := make([]model.Entry, 0, len(ps))
	for _, p := range ps {
		e, err := EntryFromProperties(p)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func StatusToProperties(s model.Status) StatusProperties {
	return StatusProperties{
		Code:    utils.Escape(s.Code()),
		Message: s.Message(),
		State:   s.State().String(),
	}
}

// StatusFromProperties decodes p. ok is false when p is empty.
func StatusFromProperties(p StatusProperties) (st model.Status, ok bool, err error) {
	if p == (StatusProperties{}) {
		return model.Status{}, false, nil
	}
	b := model.NewStatusBuilder().SetCode(utils.Escape(p.Code)).SetMessage(p.Message)
	if err := b.SetState(p.State); err != nil {
		return model.Status{}, false, err
	}
	return b.Build(), true, nil
}

func ContextToProperties(c model.Context) ContextProperties {
	return ContextProperties{
		Hardware:   utils.Escape(c.Hardware),
		OS:         utils.Escape(c.OS),
		Software:   utils.Escape(c.Software),
		Location:   utils.Escape(c.Location),
		Script:     utils.Escape(c.Script),
		InstanceID: utils.Escape(c.InstanceID),
	}
}

func ContextFromProperties(p ContextProperties) model.Context {
	return model.NewContextBuilder().
		SetHardware(utils.Escape(p.Hardware)).
		SetOS(utils.Escape(p.OS)).
		SetSoftware(utils.Escape(p.Software)).
		SetLocation(utils.Escape(p.Location)).
		SetScript(utils.Escape(p.Script)).
		SetInstanceID(utils.Escape(p.InstanceID)).
		Build()
}

// SessionToProperties builds the body of a session request.
func SessionToProperties(c model.Context, apiKey string) SessionProperties {
	cp := ContextToProperties(c)
	return SessionProperties{Context: &cp, APIKey: apiKey}
}
