package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Signature is an ISO BMFF ftyp box that content sniffers report as
// video/mp4.
var mp4Signature = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'}

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	writePattern(t, path, nil, size)
}

// WriteMP4 writes an mp4 signature padded to size bytes.
func WriteMP4(t testing.TB, path string, size int64) {
	t.Helper()
	if size < int64(len(mp4Signature)) {
		size = int64(len(mp4Signature))
	}
	writePattern(t, path, mp4Signature, size)
}

func writePattern(t testing.TB, path string, header []byte, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	if _, err := f.Write(header); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}
	remaining := size - int64(len(header))
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}
