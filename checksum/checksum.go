// Package checksum builds the SHA-1 manifest that accompanies a
// packaged dataset. Hashes are added incrementally, while each file is
// still warm in the filesystem cache, rather than in one batch at the
// end of packaging.
package checksum

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const blockSize = 4096

// Sum streams r through SHA-1 and returns the hex digest.
func Sum(r io.Reader) (string, error) {
	h := sha1.New()
	buf := make([]byte, blockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the hex SHA-1 digest of the file contents.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Sum(f)
}

// Manifest is an append-only ledger of (absolute path, digest) entries.
type Manifest struct {
	hashes map[string]string
}

func NewManifest() *Manifest {
	return &Manifest{hashes: map[string]string{}}
}

// AddFile hashes the file (or every file under a directory) and
// records it against its absolute path.
func (m *Manifest) AddFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := m.AddFile(filepath.Join(path, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}

	digest, err := SumFile(path)
	if err != nil {
		return err
	}
	return m.append(path, digest)
}

// Add hashes an already-open reader under the given name.
func (m *Manifest) Add(r io.Reader, name string) error {
	if name == "" {
		return fmt.Errorf("no usable name for checksummed reader")
	}
	digest, err := Sum(r)
	if err != nil {
		return err
	}
	return m.append(name, digest)
}

func (m *Manifest) append(path, digest string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	m.hashes[abs] = digest
	return nil
}

func (m *Manifest) Len() int {
	return len(m.hashes)
}

// Items returns the ledger as (path, digest) pairs sorted by path.
func (m *Manifest) Items() [][2]string {
	out := make([][2]string, 0, len(m.hashes))
	for path, digest := range m.hashes {
		out = append(out, [2]string{path, digest})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Write emits the manifest to outPath as tab-separated lines of digest
// and path relative to outPath's directory, sorted by that relative
// path. The output is byte-for-byte deterministic for a given set of
// files.
func (m *Manifest) Write(outPath string) error {
	base := filepath.Dir(outPath)

	type entry struct {
		rel    string
		digest string
	}
	entries := make([]entry, 0, len(m.hashes))
	for path, digest := range m.hashes {
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: filepath.ToSlash(rel), digest: digest})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.digest, e.rel)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Read loads entries from an existing manifest file, resolving paths
// against the manifest's directory.
func (m *Manifest) Read(checksumPath string) error {
	data, err := os.ReadFile(checksumPath)
	if err != nil {
		return err
	}
	base := filepath.Dir(checksumPath)

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return fmt.Errorf("malformed checksum line: %q", line)
		}
		if err := m.append(filepath.Join(base, filepath.FromSlash(parts[1])), parts[0]); err != nil {
			return err
		}
	}
	return nil
}

// IterativelyVerify re-hashes each file in path order and reports
// whether it still matches, stopping early if fn returns an error.
func (m *Manifest) IterativelyVerify(fn func(path string, matches bool) error) error {
	for _, item := range m.Items() {
		digest, err := SumFile(item[0])
		if err != nil {
			return err
		}
		if err := fn(item[0], digest == item[1]); err != nil {
			return err
		}
	}
	return nil
}
