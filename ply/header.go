// Package ply reads and writes the PLY polygon file format in ascii and binary
// little or big endian encodings.
package ply

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Format is the body encoding of a PLY file.
type Format int

// The supported body encodings.
const (
	ASCII Format = iota
	BinaryLittleEndian
	BinaryBigEndian
)

func (f Format) String() string {
	switch f {
	case ASCII:
		return "ascii"
	case BinaryLittleEndian:
		return "binary_little_endian"
	case BinaryBigEndian:
		return "binary_big_endian"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

func parseFormat(s string) (Format, error) {
	switch s {
	case "ascii":
		return ASCII, nil
	case "binary_little_endian":
		return BinaryLittleEndian, nil
	case "binary_big_endian":
		return BinaryBigEndian, nil
	default:
		return 0, errors.Errorf("unknown ply format %q", s)
	}
}

// Property describes one column of an element. List properties carry a count
// type and an element type.
type Property struct {
	Name      string
	Type      string
	IsList    bool
	CountType string
}

// Element is a named block of rows.
type Element struct {
	Name       string
	Count      int
	Properties []Property
}

// PropertyIndex returns the position of the named property, or -1.
func (e *Element) PropertyIndex(name string) int {
	for i, p := range e.Properties {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Header is the textual preamble of a PLY file.
type Header struct {
	Format   Format
	Comments []string
	Elements []Element
	// PadCounts writes element counts in a fixed width field so a header
	// written before the row count is known can be rewritten in place.
	PadCounts bool
}

// CountFieldWidth is the width of a padded element count.
const CountFieldWidth = 12

// Element returns the named element, or nil.
func (h *Header) Element(name string) *Element {
	for i := range h.Elements {
		if h.Elements[i].Name == name {
			return &h.Elements[i]
		}
	}
	return nil
}

var typeSizes = map[string]int{
	"char": 1, "int8": 1,
	"uchar": 1, "uint8": 1,
	"short": 2, "int16": 2,
	"ushort": 2, "uint16": 2,
	"int": 4, "int32": 4,
	"uint": 4, "uint32": 4,
	"float": 4, "float32": 4,
	"double": 8, "float64": 8,
}

// TypeSize returns the byte size of a scalar PLY type, or 0 for an unknown type.
func TypeSize(t string) int {
	return typeSizes[t]
}

// ReadHeader consumes the header from r, leaving r positioned at the body.
func ReadHeader(r *bufio.Reader) (*Header, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, errors.Wrap(err, "reading ply magic")
	}
	if strings.TrimSpace(magic) != "ply" {
		return nil, errors.New("not a ply file")
	}

	h := &Header{}
	var sawFormat bool
	for lineNum := 2; ; lineNum++ {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("ply header is missing end_header")
			}
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, errors.Errorf("line %d: format needs a value", lineNum)
			}
			if h.Format, err = parseFormat(fields[1]); err != nil {
				return nil, err
			}
			sawFormat = true
		case "comment", "obj_info":
			h.Comments = append(h.Comments, strings.TrimSpace(strings.TrimPrefix(line, fields[0])))
		case "element":
			if len(fields) != 3 {
				return nil, errors.Errorf("line %d: element needs a name and a count", lineNum)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, errors.Errorf("line %d: bad element count %q", lineNum, fields[2])
			}
			h.Elements = append(h.Elements, Element{Name: fields[1], Count: count})
		case "property":
			if len(h.Elements) == 0 {
				return nil, errors.Errorf("line %d: property before any element", lineNum)
			}
			prop, err := parseProperty(fields)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNum)
			}
			el := &h.Elements[len(h.Elements)-1]
			el.Properties = append(el.Properties, prop)
		case "end_header":
			if !sawFormat {
				return nil, errors.New("ply header has no format line")
			}
			return h, nil
		default:
			return nil, errors.Errorf("line %d: unexpected header keyword %q", lineNum, fields[0])
		}
	}
}

func parseProperty(fields []string) (Property, error) {
	if len(fields) >= 2 && fields[1] == "list" {
		if len(fields) != 5 {
			return Property{}, errors.New("list property needs count type, item type and name")
		}
		if TypeSize(fields[2]) == 0 || TypeSize(fields[3]) == 0 {
			return Property{}, errors.Errorf("unknown list types %q %q", fields[2], fields[3])
		}
		return Property{Name: fields[4], Type: fields[3], IsList: true, CountType: fields[2]}, nil
	}
	if len(fields) != 3 {
		return Property{}, errors.New("property needs a type and a name")
	}
	if TypeSize(fields[1]) == 0 {
		return Property{}, errors.Errorf("unknown property type %q", fields[1])
	}
	return Property{Name: fields[2], Type: fields[1]}, nil
}

// WriteTo writes the header including the end_header line.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	sb.WriteString("ply\n")
	fmt.Fprintf(&sb, "format %s 1.0\n", h.Format)
	for _, c := range h.Comments {
		fmt.Fprintf(&sb, "comment %s\n", c)
	}
	for _, el := range h.Elements {
		if h.PadCounts {
			fmt.Fprintf(&sb, "element %s %-*d\n", el.Name, CountFieldWidth, el.Count)
		} else {
			fmt.Fprintf(&sb, "element %s %d\n", el.Name, el.Count)
		}
		for _, p := range el.Properties {
			if p.IsList {
				fmt.Fprintf(&sb, "property list %s %s %s\n", p.CountType, p.Type, p.Name)
			} else {
				fmt.Fprintf(&sb, "property %s %s\n", p.Type, p.Name)
			}
		}
	}
	sb.WriteString("end_header\n")
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
