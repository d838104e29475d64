// Package pcd reads and writes Point Cloud Data (.pcd) files, the
// interchange format understood by most point cloud tooling. Only
// unorganized clouds with x, y, z and optional intensity fields are
// handled; both ascii and (little-endian) binary payloads are
// supported. Points whose coordinates are NaN are marked invalid.
package pcd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kestrel-data/framereco/internal/reco"
)

// ErrUnsupported marks PCD features this decoder does not handle
// (compressed payloads, exotic field layouts).
var ErrUnsupported = errors.New("pcd: unsupported feature")

type dataKind int

const (
	dataASCII dataKind = iota
	dataBinary
)

type header struct {
	fields []string
	sizes  []int
	types  []byte
	counts []int
	points int
	data   dataKind
}

// fieldAt returns the position of the named field, or -1.
func (h *header) fieldAt(name string) int {
	for i, f := range h.fields {
		if f == name {
			return i
		}
	}
	return -1
}

// Decode reads one PCD file into column arrays.
func Decode(r io.Reader) (reco.RawPoints, error) {
	br := bufio.NewReader(r)
	h, err := readHeader(br)
	if err != nil {
		return reco.RawPoints{}, err
	}

	xi, yi, zi := h.fieldAt("x"), h.fieldAt("y"), h.fieldAt("z")
	if xi < 0 || yi < 0 || zi < 0 {
		return reco.RawPoints{}, fmt.Errorf("pcd: need x, y and z fields, have %v", h.fields)
	}
	ii := h.fieldAt("intensity")

	raw := reco.RawPoints{
		X:         make([]float64, h.points),
		Y:         make([]float64, h.points),
		Z:         make([]float64, h.points),
		Intensity: make([]float64, h.points),
		Invalid:   make([]bool, h.points),
	}

	row := make([]float64, len(h.fields))
	for n := 0; n < h.points; n++ {
		switch h.data {
		case dataASCII:
			err = readRowASCII(br, h, row)
		case dataBinary:
			err = readRowBinary(br, h, row)
		}
		if err != nil {
			return reco.RawPoints{}, fmt.Errorf("pcd: point %d of %d: %w", n, h.points, err)
		}

		raw.X[n], raw.Y[n], raw.Z[n] = row[xi], row[yi], row[zi]
		if ii >= 0 {
			raw.Intensity[n] = row[ii]
		}
		if math.IsNaN(raw.X[n]) || math.IsNaN(raw.Y[n]) || math.IsNaN(raw.Z[n]) {
			raw.X[n], raw.Y[n], raw.Z[n] = 0, 0, 0
			raw.Invalid[n] = true
		}
	}

	return raw, nil
}

func readHeader(br *bufio.Reader) (*header, error) {
	h := &header{points: -1}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("pcd: header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		key, args := tokens[0], tokens[1:]

		switch key {
		case "VERSION", "WIDTH", "HEIGHT", "VIEWPOINT":
			// Unorganized clouds: POINTS is authoritative.
		case "FIELDS":
			h.fields = args
		case "SIZE":
			h.sizes = make([]int, len(args))
			for i, a := range args {
				if h.sizes[i], err = strconv.Atoi(a); err != nil {
					return nil, fmt.Errorf("pcd: bad SIZE entry %q", a)
				}
			}
		case "TYPE":
			h.types = make([]byte, len(args))
			for i, a := range args {
				if len(a) != 1 {
					return nil, fmt.Errorf("pcd: bad TYPE entry %q", a)
				}
				h.types[i] = a[0]
			}
		case "COUNT":
			h.counts = make([]int, len(args))
			for i, a := range args {
				if h.counts[i], err = strconv.Atoi(a); err != nil {
					return nil, fmt.Errorf("pcd: bad COUNT entry %q", a)
				}
				if h.counts[i] != 1 {
					return nil, fmt.Errorf("%w: COUNT > 1", ErrUnsupported)
				}
			}
		case "POINTS":
			if len(args) != 1 {
				return nil, fmt.Errorf("pcd: bad POINTS line %q", line)
			}
			if h.points, err = strconv.Atoi(args[0]); err != nil || h.points < 0 {
				return nil, fmt.Errorf("pcd: bad POINTS value %q", args[0])
			}
		case "DATA":
			if len(args) != 1 {
				return nil, fmt.Errorf("pcd: bad DATA line %q", line)
			}
			switch args[0] {
			case "ascii":
				h.data = dataASCII
			case "binary":
				h.data = dataBinary
			default:
				return nil, fmt.Errorf("%w: DATA %s", ErrUnsupported, args[0])
			}
			return validateHeader(h)
		default:
			return nil, fmt.Errorf("pcd: unknown header line %q", line)
		}
	}
}

func validateHeader(h *header) (*header, error) {
	if len(h.fields) == 0 {
		return nil, errors.New("pcd: header missing FIELDS")
	}
	if h.points < 0 {
		return nil, errors.New("pcd: header missing POINTS")
	}
	if len(h.sizes) != len(h.fields) || len(h.types) != len(h.fields) {
		return nil, fmt.Errorf("pcd: FIELDS/SIZE/TYPE disagree: %d/%d/%d",
			len(h.fields), len(h.sizes), len(h.types))
	}
	for i := range h.fields {
		switch {
		case h.types[i] == 'F' && (h.sizes[i] == 4 || h.sizes[i] == 8):
		case h.types[i] == 'U' && (h.sizes[i] == 1 || h.sizes[i] == 2 || h.sizes[i] == 4):
		case h.types[i] == 'I' && (h.sizes[i] == 1 || h.sizes[i] == 2 || h.sizes[i] == 4):
		default:
			return nil, fmt.Errorf("%w: field %s type %c size %d",
				ErrUnsupported, h.fields[i], h.types[i], h.sizes[i])
		}
	}
	return h, nil
}

func readRowASCII(br *bufio.Reader, h *header, row []float64) error {
	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return err
	}
	tokens := strings.Fields(line)
	if len(tokens) != len(h.fields) {
		return fmt.Errorf("have %d values, want %d", len(tokens), len(h.fields))
	}
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("field %s: %w", h.fields[i], err)
		}
		row[i] = v
	}
	return nil
}

func readRowBinary(br *bufio.Reader, h *header, row []float64) error {
	var buf [8]byte
	for i := range h.fields {
		b := buf[:h.sizes[i]]
		if _, err := io.ReadFull(br, b); err != nil {
			return err
		}
		switch h.types[i] {
		case 'F':
			if h.sizes[i] == 4 {
				row[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			} else {
				row[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
			}
		case 'U':
			switch h.sizes[i] {
			case 1:
				row[i] = float64(b[0])
			case 2:
				row[i] = float64(binary.LittleEndian.Uint16(b))
			case 4:
				row[i] = float64(binary.LittleEndian.Uint32(b))
			}
		case 'I':
			switch h.sizes[i] {
			case 1:
				row[i] = float64(int8(b[0]))
			case 2:
				row[i] = float64(int16(binary.LittleEndian.Uint16(b)))
			case 4:
				row[i] = float64(int32(binary.LittleEndian.Uint32(b)))
			}
		}
	}
	return nil
}
