package rest

import (
	"github.com/and161185/dataexchange/internal/errs"
	"github.com/and161185/dataexchange/internal/xmlentries"
	"github.com/and161185/dataexchange/model"
)

// XMLEntriesToProperties encodes a raw document. parentPath may be empty.
func XMLEntriesToProperties(xml string, parentPath []string, timestamp int64, charset string) XMLEntriesProperties {
	p := XMLEntriesProperties{
		XML:       xml,
		Timestamp: &timestamp,
		Charset:   charset,
	}
	if len(parentPath) > 0 {
		// non-empty, cannot fail
		p.Path, _ = PathToString(parentPath, PathSeparator)
	}
	return p
}

// XMLEntriesFromProperties flattens the document carried by p. A missing
// timestamp means now and a missing charset means UTF-8.
func XMLEntriesFromProperties(p XMLEntriesProperties) ([]model.Entry, error) {
	if p.XML == "" {
		return nil, errs.InvalidArgument("Missing Xml entry.")
	}
	path := []string{}
	if p.Path != "" {
		var err error
		if path, err = PathFromString(p.Path, PathSeparator); err != nil {
			return nil, err
		}
	}
	ts := model.Now()
	if p.Timestamp != nil {
		ts = *p.Timestamp
	}
	charset := p.Charset
	if charset == "" {
		charset = xmlentries.DefaultCharset
	}
	return xmlentries.FromXML(p.XML, path, ts, charset)
}
