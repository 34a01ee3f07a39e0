// Package xmlentries flattens an XML document into metric entries.
//
// Entries come from leaves. An element whose children yield entries
// contributes only their entries and its own text is dropped; an element
// with text and no entry-producing children becomes one entry; an empty
// element with attributes becomes one entry per attribute.
package xmlentries

import (
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/model"
)

// DefaultCharset is assumed when no charset is given.
const DefaultCharset = "UTF-8"

// FromXML parses xml and returns its entries in document order, each path
// prefixed with parentPath and stamped with timestamp. parentPath may be
// empty but not nil.
func FromXML(xml string, parentPath []string, timestamp int64, charset string) ([]model.Entry, error) {
	if parentPath == nil {
		return nil, errs.InvalidArgument("parent path must not be nil")
	}
	if err := ValidateCharset(charset); err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	// xml is already decoded text; the declared encoding does not apply.
	doc.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	if err := doc.ReadFromString(xml); err != nil {
		return nil, errs.Wrap(errs.APIInvalidArgument, "Invalid XML content", err)
	}
	if err := checkSingleRoot(doc); err != nil {
		return nil, err
	}

	var entries []model.Entry
	for _, el := range doc.ChildElements() {
		entries = appendElement(entries, el, parentPath, timestamp)
	}
	return entries, nil
}

// checkSingleRoot requires exactly one top-level element and no text
// outside it.
func checkSingleRoot(doc *etree.Document) error {
	switch n := len(doc.ChildElements()); {
	case n == 0:
		return errs.InvalidArgument("Invalid XML content: no root element")
	case n > 1:
		return errs.InvalidArgument("Invalid XML content: %d root elements", n)
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return errs.InvalidArgument("Invalid XML content: text outside the root element")
		}
	}
	return nil
}

// ValidateCharset checks that charset is a registered IANA name.
func ValidateCharset(charset string) error {
	if charset == "" {
		return nil
	}
	if _, err := ianaindex.IANA.Encoding(charset); err != nil {
		return errs.InvalidArgument("unsupported charset %q", charset)
	}
	return nil
}

func appendElement(entries []model.Entry, el *etree.Element, parent []string, ts int64) []model.Entry {
	text := directText(el)
	children := el.ChildElements()

	if len(children) > 0 || text != "" {
		subPath := appendPath(parent, nameWithAttributes(el))
		before := len(entries)
		for _, child := range children {
			entries = appendElement(entries, child, subPath, ts)
		}
		if len(entries) == before && text != "" {
			entries = append(entries, newEntry(subPath, ts, text))
		}
		return entries
	}

	for _, a := range el.Attr {
		name := a.FullKey()
		if name == "" || a.Value == "" {
			continue
		}
		entries = append(entries, newEntry(appendPath(parent, el.FullTag()+" "+name), ts, a.Value))
	}
	return entries
}

// directText joins the element's own character data, ignoring descendants.
func directText(el *etree.Element) string {
	var sb strings.Builder
	for _, tok := range el.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			sb.WriteString(cd.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}

func nameWithAttributes(el *etree.Element) string {
	var sb strings.Builder
	sb.WriteString(el.FullTag())
	for _, a := range el.Attr {
		sb.WriteString(" ")
		sb.WriteString(a.FullKey())
		sb.WriteString(`="`)
		sb.WriteString(a.Value)
		sb.WriteString(`"`)
	}
	return sb.String()
}

func appendPath(parent []string, segment string) []string {
	path := slices.Clip(slices.Clone(parent))
	return append(path, segment)
}

// newEntry stores finite numeric text as the value and anything else,
// NaN and Inf included, as the status message.
func newEntry(path []string, ts int64, text string) model.Entry {
	b, err := model.NewEntryBuilder(path, ts)
	if err != nil {
		// path always has at least the element segment
		panic(err)
	}
	if v, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		b.SetValue(v)
	} else {
		b.SetStatus(model.NewStatusBuilder().SetMessage(text).Build())
	}
	return b.Build()
}
