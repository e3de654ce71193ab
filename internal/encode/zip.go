package encode

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
)

// ZIP packs per-frame PNG files into an archive under frames/, named
// frame_01.png onward in frame order.
func ZIP(pngs [][]byte) ([]byte, error) {
	if len(pngs) == 0 {
		return nil, errors.New("zip: no frames")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, data := range pngs {
		name := fmt.Sprintf("frames/frame_%02d.png", i+1)
		w, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}
