package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	for _, name := range []string{"a.jpg", "b.JPEG", "c.png", "d.webp"} {
		if !IsImageFile(name) {
			t.Errorf("Expected %s to be an image", name)
		}
	}
	for _, name := range []string{"a.gif", "b", "c.mp3"} {
		if IsImageFile(name) {
			t.Errorf("Expected %s not to be an image", name)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"billete.jpg":        "billete.jpg",
		"../../etc/passwd":   "_.._etc_passwd",
		"foto: 1?.png":       "foto_ 1_.png",
		"  ":                 "upload",
		"C:\\fotos\\b10.jpg": "C__fotos_b10.jpg",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
	}
	for in, want := range tests {
		if got := FormatFileSize(in); got != want {
			t.Errorf("FormatFileSize(%d): expected %q, got %q", in, want, got)
		}
	}
}

func TestOutputFilename(t *testing.T) {
	got := OutputFilename("/tmp/in/bill.jpeg", "out", "_boxes", "png")
	if want := filepath.Join("out", "bill_boxes.png"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	got = OutputFilename("bill", "out", "", "")
	if want := filepath.Join("out", "bill.jpg"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestListImageFilesAndEnsureDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := EnsureDir(nested); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	for _, name := range []string{"one.jpg", "a/two.png", "a/b/notes.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := ListImageFiles(root)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 image files, got %v", files)
	}
	if !FileExists(filepath.Join(root, "one.jpg")) || FileExists(nested) {
		t.Error("FileExists returned an unexpected result")
	}
}
