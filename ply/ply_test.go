package ply

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"go.viam.com/test"
)

func testHeader(format Format) *Header {
	return &Header{
		Format:   format,
		Comments: []string{"generated by tests"},
		Elements: []Element{
			{Name: "vertex", Count: 2, Properties: []Property{
				{Name: "x", Type: "double"},
				{Name: "y", Type: "float"},
				{Name: "alpha", Type: "uchar"},
			}},
			{Name: "face", Count: 1, Properties: []Property{
				{Name: "vertex_indices", Type: "int", IsList: true, CountType: "uchar"},
			}},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []Format{ASCII, BinaryLittleEndian, BinaryBigEndian} {
		t.Run(format.String(), func(t *testing.T) {
			h := testHeader(format)
			var buf bytes.Buffer
			_, err := h.WriteTo(&buf)
			test.That(t, err, test.ShouldBeNil)
			w := NewWriter(&buf, format)
			vert := &h.Elements[0]
			face := &h.Elements[1]
			test.That(t, w.WriteRow(vert, &Row{Values: []float64{1.5, -2.25, 255}}), test.ShouldBeNil)
			test.That(t, w.WriteRow(vert, &Row{Values: []float64{-3, 4, 0}}), test.ShouldBeNil)
			test.That(t, w.WriteRow(face, &Row{Values: []float64{0}, Lists: [][]float64{{0, 1, 1}}}), test.ShouldBeNil)
			test.That(t, w.Flush(), test.ShouldBeNil)

			r, err := NewReader(&buf)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, r.Header.Format, test.ShouldEqual, format)
			test.That(t, r.Header.Comments, test.ShouldResemble, []string{"generated by tests"})
			test.That(t, r.Header.Element("vertex").Count, test.ShouldEqual, 2)
			test.That(t, r.Header.Element("vertex").PropertyIndex("alpha"), test.ShouldEqual, 2)
			test.That(t, r.Header.Element("normal"), test.ShouldBeNil)

			var row Row
			test.That(t, r.ReadRow(r.Header.Element("vertex"), &row), test.ShouldBeNil)
			test.That(t, row.Values, test.ShouldResemble, []float64{1.5, -2.25, 255})
			test.That(t, r.ReadRow(r.Header.Element("vertex"), &row), test.ShouldBeNil)
			test.That(t, row.Values, test.ShouldResemble, []float64{-3, 4, 0})
			test.That(t, r.ReadRow(r.Header.Element("face"), &row), test.ShouldBeNil)
			test.That(t, row.Lists[0], test.ShouldResemble, []float64{0, 1, 1})
		})
	}
}

func TestTruncated(t *testing.T) {
	h := testHeader(BinaryLittleEndian)
	var buf bytes.Buffer
	_, err := h.WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)
	buf.Write([]byte{1, 2, 3})

	r, err := NewReader(&buf)
	test.That(t, err, test.ShouldBeNil)
	var row Row
	err = r.ReadRow(r.Header.Element("vertex"), &row)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unexpected EOF")
}

func TestBadHeaders(t *testing.T) {
	for name, text := range map[string]string{
		"magic":       "plx\nformat ascii 1.0\nend_header\n",
		"format":      "ply\nformat binary_middle_endian 1.0\nend_header\n",
		"no format":   "ply\nelement vertex 1\nend_header\n",
		"no end":      "ply\nformat ascii 1.0\n",
		"orphan":      "ply\nformat ascii 1.0\nproperty float x\nend_header\n",
		"bad type":    "ply\nformat ascii 1.0\nelement vertex 1\nproperty quad x\nend_header\n",
		"bad count":   "ply\nformat ascii 1.0\nelement vertex many\nend_header\n",
		"bad list":    "ply\nformat ascii 1.0\nelement face 1\nproperty list uchar int\nend_header\n",
		"bad keyword": "ply\nformat ascii 1.0\nvertex 1\nend_header\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadHeader(bufio.NewReader(strings.NewReader(text)))
			test.That(t, err, test.ShouldNotBeNil)
		})
	}
}

func TestPaddedCounts(t *testing.T) {
	h := testHeader(BinaryLittleEndian)
	h.PadCounts = true
	var short, long bytes.Buffer
	_, err := h.WriteTo(&short)
	test.That(t, err, test.ShouldBeNil)
	h.Elements[0].Count = 123456789
	_, err = h.WriteTo(&long)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, short.Len(), test.ShouldEqual, long.Len())

	parsed, err := ReadHeader(bufio.NewReader(&long))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, parsed.Element("vertex").Count, test.ShouldEqual, 123456789)
}
