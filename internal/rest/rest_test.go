package rest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/utils"
	"github.com/and161185/dataexchange/model"
)

func buildEntry(t *testing.T, path []string, ts int64) *model.EntryBuilder {
	t.Helper()
	b, err := model.NewEntryBuilder(path, ts)
	require.NoError(t, err)
	return b
}

func TestPathFromString(t *testing.T) {
	p, err := PathFromString("a|b$|c", PathSeparator)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b_", "c"}, p)

	_, err = PathFromString("", PathSeparator)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = PathToString(nil, PathSeparator)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestEntryToProperties(t *testing.T) {
	st := model.NewStatusBuilder().SetCode("E#1").SetMessage("msg <raw>").SetStateValue(model.StateFail).Build()
	e := buildEntry(t, []string{"Req|uests", "home"}, 1500).
		SetValue(3).SetUnit("m$").SetURL("http://h/?a=[1]").SetStatus(st).Build()

	p, err := EntryToProperties(e)
	require.NoError(t, err)
	require.Equal(t, "Req_uests|home", p.Path)
	require.EqualValues(t, 1500, *p.Timestamp)
	require.Equal(t, 3.0, *p.Value)
	require.Equal(t, "m_", p.Unit)
	require.Equal(t, "http://h/?a=[1]", p.URL)
	require.Equal(t, StatusProperties{Code: "E_1", Message: "msg <raw>", State: "Fail"}, *p.Status)

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{"Path":"Req_uests|home","Value":3,"Timestamp":1500,"Url":"http://h/?a=[1]","Unit":"m_",
		"Status":{"Code":"E_1","Message":"msg <raw>","State":"Fail"}}`, string(raw))
}

func TestEntryFromProperties(t *testing.T) {
	p := EntryProperties{
		Path:      "a|b",
		Timestamp: utils.I64Ptr(7),
		Value:     utils.F64Ptr(1.5),
		Unit:      "ms",
		Status:    &StatusProperties{Message: "ok", State: "Pass"},
	}
	e, err := EntryFromProperties(p)
	require.NoError(t, err)

	want := buildEntry(t, []string{"a", "b"}, 7).SetValue(1.5).SetUnit("ms").
		SetStatus(model.NewStatusBuilder().SetMessage("ok").SetStateValue(model.StatePass).Build()).Build()
	require.True(t, want.Equal(e), "got %s", e)
	require.Equal(t, "a/b", DisplayPath(e))
}

func TestEntryFromProperties_Errors(t *testing.T) {
	tests := []struct {
		name string
		p    EntryProperties
		msg  string
	}{
		{name: "no path", p: EntryProperties{Timestamp: utils.I64Ptr(1)}, msg: "Missing path entry."},
		{name: "no timestamp", p: EntryProperties{Path: "a"}, msg: "Missing entry timestamp."},
		{name: "bad state", p: EntryProperties{Path: "a", Timestamp: utils.I64Ptr(1), Status: &StatusProperties{State: "Maybe"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EntryFromProperties(tt.p)
			require.ErrorIs(t, err, errs.ErrInvalidArgument)
			if tt.msg != "" {
				require.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestEmptyStatusIsDropped(t *testing.T) {
	e, err := EntryFromProperties(EntryProperties{Path: "a", Timestamp: utils.I64Ptr(1), Status: &StatusProperties{}})
	require.NoError(t, err)
	_, ok := e.Status()
	require.False(t, ok)
}

func TestEntriesRoundTrip(t *testing.T) {
	in := []model.Entry{
		buildEntry(t, []string{"a"}, 1).SetValue(1).Build(),
		buildEntry(t, []string{"a", "b"}, 2).Build(),
	}
	ps, err := EntriesToProperties("sid", in)
	require.NoError(t, err)
	require.Equal(t, "sid", ps.SessionID)

	out, err := EntriesFromProperties(ps.Entries)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for i := range in {
		require.True(t, in[i].Equal(out[i]))
	}
}

func TestContextProperties(t *testing.T) {
	c := model.NewContextBuilder().SetHardware("x86").SetOS("lin|ux").SetScript("s").Build()
	p := ContextToProperties(c)
	require.Equal(t, "lin_ux", p.OS)

	back := ContextFromProperties(ContextProperties{Hardware: "a*", Location: "Paris"})
	require.Equal(t, "a_", back.Hardware)
	require.Equal(t, "Paris", back.Location)

	sp := SessionToProperties(c, "key")
	require.Equal(t, "key", sp.APIKey)
	require.Equal(t, "x86", sp.Context.Hardware)
}

func TestXMLEntriesProperties(t *testing.T) {
	p := XMLEntriesToProperties("<A><B>1</B></A>", []string{"s", "mon"}, 99, "")
	require.Equal(t, "s|mon", p.Path)

	entries, err := XMLEntriesFromProperties(p)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{"s", "mon", "A", "B"}, entries[0].Path())
	require.EqualValues(t, 99, entries[0].Timestamp())
}

func TestXMLEntriesFromProperties_Defaults(t *testing.T) {
	prev := model.Now
	model.Now = func() int64 { return 123 }
	t.Cleanup(func() { model.Now = prev })

	entries, err := XMLEntriesFromProperties(XMLEntriesProperties{XML: "<A>x</A>"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, []string{"A"}, entries[0].Path())
	require.EqualValues(t, 123, entries[0].Timestamp())

	_, err = XMLEntriesFromProperties(XMLEntriesProperties{})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = XMLEntriesFromProperties(XMLEntriesProperties{XML: "<A>"})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestMetadataSupports(t *testing.T) {
	m := Metadata{Resources: []string{SessionResource, XMLEntriesResource}}
	require.True(t, m.Supports(XMLEntriesResource))
	require.False(t, m.Supports(EntryResource))
}
