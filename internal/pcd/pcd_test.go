package pcd

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kestrel-data/framereco/internal/reco"
)

func samplePoints() reco.RawPoints {
	return reco.RawPoints{
		X:         []float64{1.5, -2.25, 0},
		Y:         []float64{10, 20.5, 0},
		Z:         []float64{-1.9, 0.25, 0},
		Intensity: []float64{12, 40, 0},
		Invalid:   []bool{false, false, true},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name   string
		format Format
	}{
		{"ascii", FormatASCII},
		{"binary", FormatBinary},
	} {
		t.Run(tc.name, func(t *testing.T) {
			want := samplePoints()
			var buf bytes.Buffer
			if err := Encode(&buf, want, tc.format); err != nil {
				t.Fatalf("Encode: %v", err)
			}

			got, err := Decode(&buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Len() != want.Len() {
				t.Fatalf("Len = %d, want %d", got.Len(), want.Len())
			}
			// Values travel as float32 in both encodings.
			for i := 0; i < want.Len(); i++ {
				if got.Invalid[i] != want.Invalid[i] {
					t.Errorf("point %d: Invalid = %v, want %v", i, got.Invalid[i], want.Invalid[i])
				}
				if want.Invalid[i] {
					continue
				}
				if math.Abs(got.X[i]-want.X[i]) > 1e-6 ||
					math.Abs(got.Y[i]-want.Y[i]) > 1e-6 ||
					math.Abs(got.Z[i]-want.Z[i]) > 1e-6 ||
					math.Abs(got.Intensity[i]-want.Intensity[i]) > 1e-4 {
					t.Errorf("point %d: got (%g %g %g %g)", i, got.X[i], got.Y[i], got.Z[i], got.Intensity[i])
				}
			}
		})
	}
}

func TestDecodeNaNMarksInvalid(t *testing.T) {
	src := `VERSION .7
FIELDS x y z intensity
SIZE 4 4 4 4
TYPE F F F F
COUNT 1 1 1 1
WIDTH 2
HEIGHT 1
VIEWPOINT 0 0 0 1 0 0 0
POINTS 2
DATA ascii
1 2 3 4
nan nan nan 0
`
	got, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Invalid[0] {
		t.Error("point 0 marked invalid")
	}
	if !got.Invalid[1] {
		t.Error("NaN point not marked invalid")
	}
	if got.X[1] != 0 || got.Y[1] != 0 || got.Z[1] != 0 {
		t.Errorf("invalid point coords = (%g %g %g), want zeros", got.X[1], got.Y[1], got.Z[1])
	}
}

func TestDecodeWithoutIntensity(t *testing.T) {
	src := `VERSION .7
FIELDS x y z
SIZE 4 4 4
TYPE F F F
COUNT 1 1 1
POINTS 1
DATA ascii
1 2 3
`
	got, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Intensity[0] != 0 {
		t.Errorf("Intensity = %g, want 0", got.Intensity[0])
	}
}

func TestDecodeRingField(t *testing.T) {
	// Sensor exports often carry extra fields; they are read and
	// discarded.
	src := `VERSION .7
FIELDS x y z intensity ring
SIZE 4 4 4 4 2
TYPE F F F F U
COUNT 1 1 1 1 1
POINTS 1
DATA ascii
1 2 3 9 15
`
	got, err := Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.X[0] != 1 || got.Intensity[0] != 9 {
		t.Errorf("got point (%g %g %g %g)", got.X[0], got.Y[0], got.Z[0], got.Intensity[0])
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, tc := range []struct {
		name        string
		src         string
		unsupported bool
	}{
		{
			name: "missing z field",
			src: `FIELDS x y intensity
SIZE 4 4 4
TYPE F F F
COUNT 1 1 1
POINTS 0
DATA ascii
`,
		},
		{
			name: "compressed payload",
			src: `FIELDS x y z
SIZE 4 4 4
TYPE F F F
COUNT 1 1 1
POINTS 0
DATA binary_compressed
`,
			unsupported: true,
		},
		{
			name: "count above one",
			src: `FIELDS x normals
SIZE 4 4
TYPE F F
COUNT 1 3
POINTS 0
DATA ascii
`,
			unsupported: true,
		},
		{
			name: "missing points line",
			src: `FIELDS x y z
SIZE 4 4 4
TYPE F F F
COUNT 1 1 1
DATA ascii
`,
		},
		{
			name: "truncated ascii row",
			src: `FIELDS x y z
SIZE 4 4 4
TYPE F F F
COUNT 1 1 1
POINTS 1
DATA ascii
1 2
`,
		},
		{
			name: "truncated binary payload",
			src: "FIELDS x y z\nSIZE 4 4 4\nTYPE F F F\nCOUNT 1 1 1\nPOINTS 1\nDATA binary\n\x00\x00",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.unsupported && !errors.Is(err, ErrUnsupported) {
				t.Errorf("error %v, want ErrUnsupported", err)
			}
		})
	}
}
