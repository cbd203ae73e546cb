package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"parcel-locator/internal/config"
)

func TestNewR2ClientNotConfigured(t *testing.T) {
	_, err := NewR2Client(config.R2Config{Endpoint: "https://r2.example", Bucket: "photos"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	var nilClient *R2Client
	if _, err := nilClient.Upload(t.Context(), "k", nil, 1, "image/jpeg"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("nil upload err = %v", err)
	}
}

func TestObjectURL(t *testing.T) {
	c, err := NewR2Client(config.R2Config{
		Endpoint: "https://acct.r2.cloudflarestorage.com/", AccessKey: "a", SecretKey: "s", Bucket: "photos",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.ObjectURL("/photos/2024/01/x.jpg"); got != "https://acct.r2.cloudflarestorage.com/photos/photos/2024/01/x.jpg" {
		t.Errorf("url = %q", got)
	}

	c.publicBaseURL = "https://cdn.example"
	if got := c.ObjectURL("a.png"); got != "https://cdn.example/photos/a.png" {
		t.Errorf("public url = %q", got)
	}
}

func TestPhotoKey(t *testing.T) {
	id := uuid.MustParse("7d3c1b2a-0000-4000-8000-000000000001")
	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		filename string
		want     string
	}{
		{"IMG_0042.JPG", "photos/2024/03/7d3c1b2a-0000-4000-8000-000000000001.jpg"},
		{"facade.png", "photos/2024/03/7d3c1b2a-0000-4000-8000-000000000001.png"},
		{"", "photos/2024/03/7d3c1b2a-0000-4000-8000-000000000001.jpg"},
		{"notes.txt", "photos/2024/03/7d3c1b2a-0000-4000-8000-000000000001.jpg"},
	}
	for _, tt := range tests {
		if got := PhotoKey(id, tt.filename, at); got != tt.want {
			t.Errorf("PhotoKey(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
