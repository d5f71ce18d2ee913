package enums

import "testing"

func TestClassifyMime(t *testing.T) {
	cases := []struct {
		mime string
		want ContentType
	}{
		{"video/mp4", ContentTypeVideo},
		{"VIDEO/QuickTime", ContentTypeVideo},
		{"audio/mpeg", ContentTypeAudio},
		{"image/png", ContentTypeImage},
		{"application/pdf", ContentTypeDocument},
		{"text/plain", ContentTypeDocument},
		{"", ContentTypeDocument},
		{"  application/zip  ", ContentTypeDocument},
	}

	for _, tc := range cases {
		if got := ClassifyMime(tc.mime); got != tc.want {
			t.Fatalf("ClassifyMime(%q) = %s, want %s", tc.mime, got, tc.want)
		}
	}
}

func TestParseContentType(t *testing.T) {
	if _, err := ParseContentType("video"); err != nil {
		t.Fatalf("expected video to parse: %v", err)
	}
	if _, err := ParseContentType("podcast"); err == nil {
		t.Fatal("expected error for unknown content type")
	}
}
