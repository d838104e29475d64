package npz

import (
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/sbinet/npyio"

	"github.com/kestrel-data/framereco/internal/reco"
)

// SaveFrame writes a frame archive compatible with LoadFrame (and with
// numpy.load). Members are stored uncompressed, matching numpy.savez.
func SaveFrame(path string, raw reco.RawPoints) (err error) {
	if err := raw.Validate(); err != nil {
		return fmt.Errorf("npz: save %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("npz: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := WriteFrame(f, raw); err != nil {
		return fmt.Errorf("npz: save %s: %w", path, err)
	}
	return nil
}

// WriteFrame writes the archive to w.
func WriteFrame(w io.Writer, raw reco.RawPoints) error {
	zw := zip.NewWriter(w)

	write := func(name string, v interface{}) error {
		// Store, don't deflate: numpy reads members with ReaderAt
		// semantics and savez writes them stored too.
		ew, err := zw.CreateHeader(&zip.FileHeader{Name: name + ".npy", Method: zip.Store})
		if err != nil {
			return fmt.Errorf("member %s: %w", name, err)
		}
		if err := npyio.Write(ew, v); err != nil {
			return fmt.Errorf("member %s: %w", name, err)
		}
		return nil
	}

	if err := write(MemberX, raw.X); err != nil {
		return err
	}
	if err := write(MemberY, raw.Y); err != nil {
		return err
	}
	if err := write(MemberZ, raw.Z); err != nil {
		return err
	}
	if err := write(MemberIntensity, raw.Intensity); err != nil {
		return err
	}
	if err := write(MemberInvalid, raw.Invalid); err != nil {
		return err
	}
	if raw.Time != nil {
		if err := write(MemberTime, raw.Time); err != nil {
			return err
		}
	}

	return zw.Close()
}
