package prediction

import "testing"

func TestPredictedKey(t *testing.T) {
	cases := map[string]string{
		"images/cat1.jpg":     "predictions/cat1.jpg",
		"images/a/b/dog.png":  "predictions/dog.png",
		"images/photo.v2.jpg": "predictions/photo.v2.jpg",
	}
	for key, want := range cases {
		if got := PredictedKey(key); got != want {
			t.Fatalf("PredictedKey(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestStem(t *testing.T) {
	if got := Stem("images/photo.v2.jpg"); got != "photo.v2" {
		t.Fatalf("unexpected stem: %q", got)
	}
	if got := Stem("predictions/cat1"); got != "cat1" {
		t.Fatalf("unexpected stem: %q", got)
	}
}
