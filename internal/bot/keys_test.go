package bot

import "testing"

func TestResolveImageKeyKeepsSupportedExtensions(t *testing.T) {
	for _, caption := range []string{"cat.jpg", "dog.PNG", "scan.tiff", "pic.webp", "raw.dng", "x.mpo", "a.b.jpeg", "old.bmp", "t.tif"} {
		if got := ResolveImageKey(caption, "file_3.jpg"); got != "images/"+caption {
			t.Fatalf("ResolveImageKey(%q) = %q, want %q", caption, got, "images/"+caption)
		}
	}
}

func TestResolveImageKeyAppendsJPG(t *testing.T) {
	for _, caption := range []string{"cat1", "notes.txt", "archive.tar.gz", "dot.", "my cat"} {
		if got := ResolveImageKey(caption, "file_3.jpg"); got != "images/"+caption+".jpg" {
			t.Fatalf("ResolveImageKey(%q) = %q, want %q", caption, got, "images/"+caption+".jpg")
		}
	}
}

func TestResolveImageKeyFallsBackToFilename(t *testing.T) {
	if got := ResolveImageKey("", "file_3.jpg"); got != "images/file_3.jpg" {
		t.Fatalf("unexpected key: %q", got)
	}
	if got := ResolveImageKey("", "file_3"); got != "images/file_3.jpg" {
		t.Fatalf("unexpected key: %q", got)
	}
}

func TestResolveImageKeyIsDeterministic(t *testing.T) {
	first := ResolveImageKey("holiday", "file_9.jpg")
	for i := 0; i < 10; i++ {
		if got := ResolveImageKey("holiday", "file_9.jpg"); got != first {
			t.Fatalf("expected %q, got %q", first, got)
		}
	}
}
