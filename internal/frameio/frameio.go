// Package frameio dispatches frame file loading by extension.
package frameio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrel-data/framereco/internal/npz"
	"github.com/kestrel-data/framereco/internal/pcd"
	"github.com/kestrel-data/framereco/internal/reco"
)

// LoadFrame reads a frame file, picking the decoder from the file
// extension. The returned format is "npz" or "pcd".
func LoadFrame(path string) (reco.RawPoints, string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".npz":
		raw, err := npz.LoadFrame(path)
		return raw, "npz", err
	case ".pcd":
		f, err := os.Open(path)
		if err != nil {
			return reco.RawPoints{}, "pcd", fmt.Errorf("frameio: open %s: %w", path, err)
		}
		defer f.Close()
		raw, err := pcd.Decode(f)
		return raw, "pcd", err
	default:
		return reco.RawPoints{}, "", fmt.Errorf("frameio: %s: unsupported frame format %q (want .npz or .pcd)", path, ext)
	}
}
