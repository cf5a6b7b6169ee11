package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSum(t *testing.T) {
	// Known SHA-1 of the empty string and of "abc".
	digest, err := Sum(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if digest != "da39a3ee5e6b4b0d3255bfef95601890afd80709" {
		t.Errorf("empty digest %s", digest)
	}

	digest, err = Sum(strings.NewReader("abc"))
	if err != nil {
		t.Fatal(err)
	}
	if digest != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("abc digest %s", digest)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "bravo")
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "charlie")

	m := NewManifest()
	if err := m.AddFile(dir); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", m.Len())
	}

	outPath := filepath.Join(dir, "package.sha1")
	if err := m.Write(outPath); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	// Sorted by relative path, tab separated.
	wantOrder := []string{"a.txt", "b.txt", "sub/c.txt"}
	for i, line := range lines {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			t.Fatalf("malformed line %q", line)
		}
		if len(parts[0]) != 40 {
			t.Errorf("digest length %d in %q", len(parts[0]), line)
		}
		if parts[1] != wantOrder[i] {
			t.Errorf("line %d path %q, want %q", i, parts[1], wantOrder[i])
		}
	}

	loaded := NewManifest()
	if err := loaded.Read(outPath); err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 3 {
		t.Fatalf("loaded %d entries", loaded.Len())
	}
	for i, item := range loaded.Items() {
		if item != m.Items()[i] {
			t.Errorf("entry %d differs: %v vs %v", i, item, m.Items()[i])
		}
	}
}

func TestManifestWriteDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.bin"), "xx")
	writeFile(t, filepath.Join(dir, "y.bin"), "yy")

	m := NewManifest()
	if err := m.AddFile(filepath.Join(dir, "y.bin")); err != nil {
		t.Fatal(err)
	}
	if err := m.AddFile(filepath.Join(dir, "x.bin")); err != nil {
		t.Fatal(err)
	}

	p1 := filepath.Join(dir, "one.sha1")
	p2 := filepath.Join(dir, "two.sha1")
	if err := m.Write(p1); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(p2); err != nil {
		t.Fatal(err)
	}
	b1, _ := os.ReadFile(p1)
	b2, _ := os.ReadFile(p2)
	if string(b1) != string(b2) {
		t.Errorf("output not deterministic:\n%s\nvs\n%s", b1, b2)
	}
}

func TestWriteSortsByRelativePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "m", "b.txt"), "bravo")
	writeFile(t, filepath.Join(dir, "z.txt"), "zulu")

	m := NewManifest()
	if err := m.AddFile(filepath.Join(dir, "m", "b.txt")); err != nil {
		t.Fatal(err)
	}
	if err := m.AddFile(filepath.Join(dir, "z.txt")); err != nil {
		t.Fatal(err)
	}

	// The entry outside the manifest directory renders as "../z.txt",
	// which sorts before "b.txt" even though its absolute path sorts
	// after.
	outPath := filepath.Join(dir, "m", "package.sha1")
	if err := m.Write(outPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}
	if !strings.HasSuffix(lines[0], "\t../z.txt") || !strings.HasSuffix(lines[1], "\tb.txt") {
		t.Errorf("entries not sorted by relative path:\n%s", string(data))
	}
}

func TestAddReader(t *testing.T) {
	dir := t.TempDir()
	m := NewManifest()
	if err := m.Add(strings.NewReader("abc"), filepath.Join(dir, "stream.dat")); err != nil {
		t.Fatal(err)
	}
	items := m.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(items))
	}
	if items[0][1] != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("digest %s", items[0][1])
	}
	if err := m.Add(strings.NewReader("x"), ""); err == nil {
		t.Error("expected error for unnamed reader")
	}
}

func TestIterativelyVerify(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	bad := filepath.Join(dir, "bad.txt")
	writeFile(t, good, "intact")
	writeFile(t, bad, "original")

	m := NewManifest()
	if err := m.AddFile(good); err != nil {
		t.Fatal(err)
	}
	if err := m.AddFile(bad); err != nil {
		t.Fatal(err)
	}

	writeFile(t, bad, "tampered")

	results := map[string]bool{}
	err := m.IterativelyVerify(func(path string, matches bool) error {
		results[filepath.Base(path)] = matches
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !results["good.txt"] {
		t.Error("good.txt should verify")
	}
	if results["bad.txt"] {
		t.Error("bad.txt should fail verification")
	}
}
