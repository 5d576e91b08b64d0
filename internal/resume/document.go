// Package resume handles base resume selection and bounded mutation of
// marker-delimited LaTeX documents.
package resume

import (
	"fmt"
	"strings"
)

// Region markers. Everything between a BEGIN/END pair is editable; everything
// outside is protected and must survive mutation byte-for-byte.
const (
	BeginMarker = "%%BEGIN_EDITABLE"
	EndMarker   = "%%END_EDITABLE"
)

// Region is one editable span of a document. Start and End index the content
// between the markers (markers excluded).
type Region struct {
	Start   int
	End     int
	Content string
}

// Document is a parsed resume: raw text plus its editable regions.
type Document struct {
	Raw     string
	Regions []Region
}

// ParseEditableRegions splits a document into protected and editable spans.
// Unbalanced or nested markers are a structural error: a document we cannot
// partition is a document we must not mutate.
func ParseEditableRegions(raw string) (*Document, error) {
	doc := &Document{Raw: raw}

	pos := 0
	for {
		begin := strings.Index(raw[pos:], BeginMarker)
		if begin < 0 {
			break
		}
		begin += pos

		contentStart := begin + len(BeginMarker)
		end := strings.Index(raw[contentStart:], EndMarker)
		if end < 0 {
			return nil, fmt.Errorf("unbalanced editable markers: %s at offset %d has no matching %s", BeginMarker, begin, EndMarker)
		}
		end += contentStart

		content := raw[contentStart:end]
		if strings.Contains(content, BeginMarker) {
			return nil, fmt.Errorf("nested editable markers at offset %d", begin)
		}

		doc.Regions = append(doc.Regions, Region{
			Start:   contentStart,
			End:     end,
			Content: content,
		})
		pos = end + len(EndMarker)
	}

	if strings.Count(raw, EndMarker) != len(doc.Regions) {
		return nil, fmt.Errorf("unbalanced editable markers: stray %s", EndMarker)
	}
	return doc, nil
}

// MaskEditableRegions returns the document with every editable span replaced
// by a fixed placeholder. Two documents with identical masks have
// byte-identical protected regions, which is exactly the edit-scope
// invariant.
func MaskEditableRegions(raw string) (string, error) {
	doc, err := ParseEditableRegions(raw)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	pos := 0
	for _, r := range doc.Regions {
		sb.WriteString(raw[pos:r.Start])
		sb.WriteString("<EDITABLE>")
		pos = r.End
	}
	sb.WriteString(raw[pos:])
	return sb.String(), nil
}
