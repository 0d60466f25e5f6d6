package ingest

import (
	"strings"
	"testing"

	"github.com/streamweld/streamweld/internal/catalog"
)

const samplePlaylist = `#EXTM3U
#EXTINF:-1 tvg-id="bbc.one" tvg-name="BBC One HD" group-title="UK", BBC One HD
http://example.test/live/bbc1.m3u8
#EXTINF:-1 group-title="Movies | VOD", Heat (1995)
http://example.test/vod/heat.mp4
#EXTINF:-1, Channel Without Attributes
http://example.test/live/plain.ts
#EXTINF:-1, Broken Entry With No URL
#EXTINF:-1 tvg-id="sky.sports", Sky Sports 4K
http://example.test/live/sky.m3u8
`

func TestParsePlaylist(t *testing.T) {
	items, err := parsePlaylist(strings.NewReader(samplePlaylist))
	if err != nil {
		t.Fatalf("parsePlaylist() error: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("parsePlaylist() = %d items, want 4", len(items))
	}

	bbc := items[0]
	if bbc.ExternalID != "bbc.one" {
		t.Errorf("externalId = %q, want tvg-id", bbc.ExternalID)
	}
	if bbc.ContentType != catalog.ContentTypeChannel {
		t.Errorf("contentType = %q, want channel", bbc.ContentType)
	}
	if bbc.QualityHint != catalog.QualityHD {
		t.Errorf("qualityHint = %q, want hd", bbc.QualityHint)
	}

	heat := items[1]
	if heat.ContentType != catalog.ContentTypeMovie {
		t.Errorf("contentType = %q, want movie", heat.ContentType)
	}
	if heat.Title != "Heat" || heat.Year != 1995 {
		t.Errorf("title/year = %q/%d, want Heat/1995", heat.Title, heat.Year)
	}

	plain := items[2]
	if plain.ExternalID != "http://example.test/live/plain.ts" {
		t.Errorf("externalId fallback = %q, want the stream URL", plain.ExternalID)
	}

	sky := items[3]
	if sky.QualityHint != catalog.QualityUHD {
		t.Errorf("qualityHint = %q, want uhd", sky.QualityHint)
	}
}

func TestParsePlaylistValidatesAgainstIngest(t *testing.T) {
	items, err := parsePlaylist(strings.NewReader(samplePlaylist))
	if err != nil {
		t.Fatalf("parsePlaylist() error: %v", err)
	}
	for i, it := range items {
		if err := it.Validate(); err != nil {
			t.Errorf("item %d fails validation: %v", i, err)
		}
	}
}

func TestParseExtinfAttributes(t *testing.T) {
	attrs := parseExtinf(`#EXTINF:-1 tvg-id="x.one" tvg-name='X One' group-title="News", X One`)
	if attrs["tvg-id"] != "x.one" {
		t.Errorf("tvg-id = %q", attrs["tvg-id"])
	}
	if attrs["tvg-name"] != "X One" {
		t.Errorf("tvg-name = %q", attrs["tvg-name"])
	}
	if attrs["group-title"] != "News" {
		t.Errorf("group-title = %q", attrs["group-title"])
	}
	if attrs["name"] != "X One" {
		t.Errorf("name = %q", attrs["name"])
	}
}
