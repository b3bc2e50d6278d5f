package mediatypes

import "testing"

func TestKindForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{".jpg", KindImage},
		{".jpeg", KindImage},
		{".png", KindImage},
		{".webp", KindImage},
		{".heic", KindImage},
		{".mp4", KindVideo},
		{".mov", KindVideo},
		{".mkv", KindVideo},
		{".txt", KindOther},
		{".exe", KindOther},
		{"", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := KindForExt(tt.ext); got != tt.want {
				t.Errorf("KindForExt(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestKindForFilename(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"IMG_0001.JPG", KindImage},
		{"holiday.MOV", KindVideo},
		{"notes.txt", KindOther},
		{"noextension", KindOther},
		{"archive.tar.gz", KindOther},
		{"clip.m4v", KindVideo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindForFilename(tt.name); got != tt.want {
				t.Errorf("KindForFilename(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestMimeForExt(t *testing.T) {
	if got := MimeForExt(".jpg"); got != "image/jpeg" {
		t.Errorf("MimeForExt(.jpg) = %q, want image/jpeg", got)
	}
	if got := MimeForExt(".mp4"); got != "video/mp4" {
		t.Errorf("MimeForExt(.mp4) = %q, want video/mp4", got)
	}
	if got := MimeForExt(".xyz"); got != "application/octet-stream" {
		t.Errorf("MimeForExt(.xyz) = %q, want application/octet-stream", got)
	}
}

func TestIsMedia(t *testing.T) {
	if !IsMedia(".png") {
		t.Error("IsMedia(.png) = false, want true")
	}
	if !IsMedia(".webm") {
		t.Error("IsMedia(.webm) = false, want true")
	}
	if IsMedia(".pdf") {
		t.Error("IsMedia(.pdf) = true, want false")
	}
}
