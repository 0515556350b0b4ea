package speech

import "testing"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		explicit, filename, contentType, want string
	}{
		{"MP3", "", "", "mp3"},
		{"", "clip.webm", "", "webm"},
		{"", "clip.bin", "audio/ogg; codecs=opus", "ogg"},
		{"", "", "audio/x-wav", "wav"},
		{"", "", "", "wav"},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.explicit, tt.filename, tt.contentType); got != tt.want {
			t.Errorf("DetectFormat(%q, %q, %q) = %q, want %q", tt.explicit, tt.filename, tt.contentType, got, tt.want)
		}
	}
}

func TestContentTypeAndFilename(t *testing.T) {
	if got := ContentType(".mp3"); got != "audio/mpeg" {
		t.Errorf("ContentType(.mp3) = %q", got)
	}
	if got := ContentType("xyz"); got != "application/octet-stream" {
		t.Errorf("ContentType(xyz) = %q", got)
	}
	if got := Filename("", "wav"); got != "audio.wav" {
		t.Errorf("Filename = %q", got)
	}
	if got := Filename("me.m4a", "wav"); got != "me.m4a" {
		t.Errorf("Filename = %q", got)
	}
}
