package ply

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// Row holds one row of an element. Values[i] is set for scalar property i and
// Lists[i] for list property i.
type Row struct {
	Values []float64
	Lists  [][]float64
}

func (row *Row) reset(n int) {
	if cap(row.Values) < n {
		row.Values = make([]float64, n)
		row.Lists = make([][]float64, n)
	}
	row.Values = row.Values[:n]
	row.Lists = row.Lists[:n]
}

// Reader decodes element rows following a header.
type Reader struct {
	Header *Header

	in    *bufio.Reader
	words *bufio.Scanner
	order binary.ByteOrder
	buf   [8]byte
}

// NewReader reads the header from r and prepares to decode the body.
func NewReader(r io.Reader) (*Reader, error) {
	in := bufio.NewReader(r)
	h, err := ReadHeader(in)
	if err != nil {
		return nil, err
	}
	pr := &Reader{Header: h, in: in}
	switch h.Format {
	case ASCII:
		pr.words = bufio.NewScanner(in)
		pr.words.Split(bufio.ScanWords)
	case BinaryLittleEndian:
		pr.order = binary.LittleEndian
	case BinaryBigEndian:
		pr.order = binary.BigEndian
	}
	return pr, nil
}

// ReadRow decodes the next row of el into row.
func (r *Reader) ReadRow(el *Element, row *Row) error {
	row.reset(len(el.Properties))
	for i, p := range el.Properties {
		if !p.IsList {
			v, err := r.readScalar(p.Type)
			if err != nil {
				return errors.Wrapf(err, "reading %s.%s", el.Name, p.Name)
			}
			row.Values[i] = v
			continue
		}
		n, err := r.readScalar(p.CountType)
		if err != nil {
			return errors.Wrapf(err, "reading %s.%s count", el.Name, p.Name)
		}
		if n < 0 {
			return errors.Errorf("negative list length in %s.%s", el.Name, p.Name)
		}
		list := row.Lists[i][:0]
		for j := 0; j < int(n); j++ {
			v, err := r.readScalar(p.Type)
			if err != nil {
				return errors.Wrapf(err, "reading %s.%s item", el.Name, p.Name)
			}
			list = append(list, v)
		}
		row.Lists[i] = list
	}
	return nil
}

// SkipElement reads and discards every row of el.
func (r *Reader) SkipElement(el *Element) error {
	var row Row
	for i := 0; i < el.Count; i++ {
		if err := r.ReadRow(el, &row); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readScalar(t string) (float64, error) {
	if r.words != nil {
		if !r.words.Scan() {
			if err := r.words.Err(); err != nil {
				return 0, err
			}
			return 0, io.ErrUnexpectedEOF
		}
		return strconv.ParseFloat(r.words.Text(), 64)
	}

	size := TypeSize(t)
	b := r.buf[:size]
	if _, err := io.ReadFull(r.in, b); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	switch t {
	case "char", "int8":
		return float64(int8(b[0])), nil
	case "uchar", "uint8":
		return float64(b[0]), nil
	case "short", "int16":
		return float64(int16(r.order.Uint16(b))), nil
	case "ushort", "uint16":
		return float64(r.order.Uint16(b)), nil
	case "int", "int32":
		return float64(int32(r.order.Uint32(b))), nil
	case "uint", "uint32":
		return float64(r.order.Uint32(b)), nil
	case "float", "float32":
		return float64(math.Float32frombits(r.order.Uint32(b))), nil
	case "double", "float64":
		return math.Float64frombits(r.order.Uint64(b)), nil
	}
	return 0, errors.Errorf("unknown ply type %q", t)
}

// Writer encodes element rows after a header has been written.
type Writer struct {
	w      *bufio.Writer
	format Format
	order  binary.ByteOrder
	buf    [8]byte
}

// NewWriter returns a row writer for the given body format. Call Flush when done.
func NewWriter(w io.Writer, format Format) *Writer {
	pw := &Writer{w: bufio.NewWriter(w), format: format}
	switch format {
	case BinaryLittleEndian:
		pw.order = binary.LittleEndian
	case BinaryBigEndian:
		pw.order = binary.BigEndian
	case ASCII:
	}
	return pw
}

// WriteRow encodes one row of el.
func (w *Writer) WriteRow(el *Element, row *Row) error {
	for i, p := range el.Properties {
		if i > 0 && w.format == ASCII {
			if err := w.w.WriteByte(' '); err != nil {
				return err
			}
		}
		if !p.IsList {
			if err := w.writeScalar(p.Type, row.Values[i]); err != nil {
				return err
			}
			continue
		}
		list := row.Lists[i]
		if err := w.writeScalar(p.CountType, float64(len(list))); err != nil {
			return err
		}
		for _, v := range list {
			if w.format == ASCII {
				if err := w.w.WriteByte(' '); err != nil {
					return err
				}
			}
			if err := w.writeScalar(p.Type, v); err != nil {
				return err
			}
		}
	}
	if w.format == ASCII {
		return w.w.WriteByte('\n')
	}
	return nil
}

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) writeScalar(t string, v float64) error {
	if w.format == ASCII {
		var s string
		switch t {
		case "float", "float32":
			s = strconv.FormatFloat(v, 'g', -1, 32)
		case "double", "float64":
			s = strconv.FormatFloat(v, 'g', -1, 64)
		default:
			s = strconv.FormatInt(int64(v), 10)
		}
		_, err := w.w.WriteString(s)
		return err
	}

	b := w.buf[:TypeSize(t)]
	switch t {
	case "char", "int8":
		b[0] = byte(int8(v))
	case "uchar", "uint8":
		b[0] = uint8(v)
	case "short", "int16":
		w.order.PutUint16(b, uint16(int16(v)))
	case "ushort", "uint16":
		w.order.PutUint16(b, uint16(v))
	case "int", "int32":
		w.order.PutUint32(b, uint32(int32(v)))
	case "uint", "uint32":
		w.order.PutUint32(b, uint32(v))
	case "float", "float32":
		w.order.PutUint32(b, math.Float32bits(float32(v)))
	case "double", "float64":
		w.order.PutUint64(b, math.Float64bits(v))
	default:
		return errors.Errorf("unknown ply type %q", t)
	}
	_, err := w.w.Write(b)
	return err
}
