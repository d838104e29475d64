package pcd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/kestrel-data/framereco/internal/reco"
)

// Format selects the payload encoding for Encode.
type Format int

const (
	// FormatASCII writes one whitespace-separated line per point.
	FormatASCII Format = iota
	// FormatBinary writes packed little-endian float32 rows.
	FormatBinary
)

// Encode writes raw as an unorganized x/y/z/intensity cloud. Invalid
// points are written with NaN coordinates, the PCD convention.
func Encode(w io.Writer, raw reco.RawPoints, format Format) error {
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("pcd: encode: %w", err)
	}

	bw := bufio.NewWriter(w)
	n := raw.Len()

	dataName := "ascii"
	if format == FormatBinary {
		dataName = "binary"
	}
	_, err := fmt.Fprintf(bw, `VERSION .7
FIELDS x y z intensity
SIZE 4 4 4 4
TYPE F F F F
COUNT 1 1 1 1
WIDTH %d
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS %d
DATA %s
`, n, n, dataName)
	if err != nil {
		return fmt.Errorf("pcd: encode header: %w", err)
	}

	for i := 0; i < n; i++ {
		x, y, z := raw.X[i], raw.Y[i], raw.Z[i]
		if raw.Invalid[i] {
			x, y, z = math.NaN(), math.NaN(), math.NaN()
		}
		switch format {
		case FormatASCII:
			_, err = fmt.Fprintf(bw, "%g %g %g %g\n", x, y, z, raw.Intensity[i])
		case FormatBinary:
			var row [16]byte
			binary.LittleEndian.PutUint32(row[0:], math.Float32bits(float32(x)))
			binary.LittleEndian.PutUint32(row[4:], math.Float32bits(float32(y)))
			binary.LittleEndian.PutUint32(row[8:], math.Float32bits(float32(z)))
			binary.LittleEndian.PutUint32(row[12:], math.Float32bits(float32(raw.Intensity[i])))
			_, err = bw.Write(row[:])
		}
		if err != nil {
			return fmt.Errorf("pcd: encode point %d: %w", i, err)
		}
	}

	return bw.Flush()
}
