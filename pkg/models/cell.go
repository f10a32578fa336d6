package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CellKind tags the variant held by a Cell.
type CellKind uint8

const (
	CellMissing CellKind = iota
	CellNumber
	CellText
)

func (k CellKind) String() string {
	switch k {
	case CellNumber:
		return "number"
	case CellText:
		return "text"
	default:
		return "missing"
	}
}

// Cell is one reported field of a reply row. Replies carry numbers, strings
// and nulls in arbitrary columns; a Cell keeps exactly one of them.
type Cell struct {
	Kind CellKind
	Num  float64
	Text string
}

// NumberCell returns a numeric cell.
func NumberCell(v float64) Cell { return Cell{Kind: CellNumber, Num: v} }

// TextCell returns a text cell. The string is kept verbatim; coercion is
// left to the value extractor.
func TextCell(s string) Cell { return Cell{Kind: CellText, Text: s} }

// MissingCell returns an empty cell.
func MissingCell() Cell { return Cell{} }

// IsMissing reports whether the cell holds no value.
func (c Cell) IsMissing() bool { return c.Kind == CellMissing }

func (c Cell) String() string {
	switch c.Kind {
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	case CellText:
		return c.Text
	default:
		return ""
	}
}

// UnmarshalJSON decodes null, numbers, strings and booleans. Anything else
// (objects, arrays) is kept as its raw JSON text.
func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = MissingCell()
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode text cell: %w", err)
		}
		*c = TextCell(s)
	case 't', 'f':
		*c = TextCell(string(b))
	case '{', '[':
		*c = TextCell(string(b))
	default:
		v, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			// Out-of-range numbers stay as text and fail coercion later.
			*c = TextCell(string(b))
			return nil
		}
		*c = NumberCell(v)
	}
	return nil
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellNumber:
		return json.Marshal(c.Num)
	case CellText:
		return json.Marshal(c.Text)
	default:
		return []byte("null"), nil
	}
}
