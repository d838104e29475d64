// Package npz loads point cloud frames from NumPy .npz archives, the
// capture format of the recording tooling. A frame archive carries the
// named member arrays x, y, z, r (intensity) and invalid, plus an
// optional per-point t (seconds).
package npz

import (
	"fmt"
	"strings"

	"github.com/sbinet/npyio/npz"

	"github.com/kestrel-data/framereco/internal/reco"
)

// Member names expected inside a frame archive.
const (
	MemberX         = "x"
	MemberY         = "y"
	MemberZ         = "z"
	MemberIntensity = "r"
	MemberInvalid   = "invalid"
	MemberTime      = "t"
)

// LoadFrame reads one frame archive from disk.
func LoadFrame(path string) (reco.RawPoints, error) {
	r, err := npz.Open(path)
	if err != nil {
		return reco.RawPoints{}, fmt.Errorf("npz: open %s: %w", path, err)
	}
	defer r.Close()

	keys := memberKeys(r)

	var raw reco.RawPoints
	for _, m := range []struct {
		name string
		dst  *[]float64
	}{
		{MemberX, &raw.X},
		{MemberY, &raw.Y},
		{MemberZ, &raw.Z},
		{MemberIntensity, &raw.Intensity},
	} {
		key, ok := keys[m.name]
		if !ok {
			return reco.RawPoints{}, fmt.Errorf("npz: %s: missing member %q", path, m.name)
		}
		vals, err := readFloats(r, key)
		if err != nil {
			return reco.RawPoints{}, fmt.Errorf("npz: %s: member %q: %w", path, m.name, err)
		}
		*m.dst = vals
	}

	key, ok := keys[MemberInvalid]
	if !ok {
		return reco.RawPoints{}, fmt.Errorf("npz: %s: missing member %q", path, MemberInvalid)
	}
	raw.Invalid, err = readBools(r, key)
	if err != nil {
		return reco.RawPoints{}, fmt.Errorf("npz: %s: member %q: %w", path, MemberInvalid, err)
	}

	if key, ok := keys[MemberTime]; ok {
		raw.Time, err = readFloats(r, key)
		if err != nil {
			return reco.RawPoints{}, fmt.Errorf("npz: %s: member %q: %w", path, MemberTime, err)
		}
	}

	if err := raw.Validate(); err != nil {
		return reco.RawPoints{}, fmt.Errorf("npz: %s: %w", path, err)
	}
	return raw, nil
}

// memberKeys maps logical member names to the archive's actual keys.
// numpy's savez stores members as "<name>.npy" zip entries, so both
// spellings are accepted.
func memberKeys(r *npz.Reader) map[string]string {
	keys := make(map[string]string)
	for _, k := range r.Keys() {
		keys[strings.TrimSuffix(k, ".npy")] = k
	}
	return keys
}

// readFloats reads a member saved as float64 or float32.
func readFloats(r *npz.Reader, key string) ([]float64, error) {
	var f64 []float64
	if err := r.Read(key, &f64); err == nil {
		return f64, nil
	}

	var f32 []float32
	if err := r.Read(key, &f32); err != nil {
		return nil, fmt.Errorf("not a float32/float64 array: %w", err)
	}
	out := make([]float64, len(f32))
	for i, v := range f32 {
		out[i] = float64(v)
	}
	return out, nil
}

// readBools reads a member saved as bool or uint8.
func readBools(r *npz.Reader, key string) ([]bool, error) {
	var bs []bool
	if err := r.Read(key, &bs); err == nil {
		return bs, nil
	}

	var u8 []uint8
	if err := r.Read(key, &u8); err != nil {
		return nil, fmt.Errorf("not a bool/uint8 array: %w", err)
	}
	out := make([]bool, len(u8))
	for i, v := range u8 {
		out[i] = v != 0
	}
	return out, nil
}
