package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/catalog"
	"github.com/streamweld/streamweld/internal/source"
)

// PlaylistProvider fetches extended M3U playlists over HTTP and turns
// their entries into pre-parsed catalog items.
type PlaylistProvider struct {
	client *http.Client
	logger zerolog.Logger
}

// NewPlaylistProvider creates a playlist provider with its own HTTP
// client.
func NewPlaylistProvider(logger zerolog.Logger) *PlaylistProvider {
	return &PlaylistProvider{
		client: &http.Client{Timeout: 90 * time.Second},
		logger: logger.With().Str("component", "playlist").Logger(),
	}
}

// Kind returns the source kind this provider serves.
func (p *PlaylistProvider) Kind() source.Kind {
	return source.KindPlaylist
}

// Fetch downloads the source's playlist and parses it.
func (p *PlaylistProvider) Fetch(ctx context.Context, src source.Source) ([]catalog.ParsedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build playlist request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch playlist: unexpected status %d", resp.StatusCode)
	}

	items, err := parsePlaylist(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse playlist: %w", err)
	}

	p.logger.Debug().
		Str("source", src.ID).
		Int("items", len(items)).
		Msg("playlist parsed")

	return items, nil
}

var yearSuffix = regexp.MustCompile(`\((\d{4})\)\s*$`)

// parsePlaylist parses an extended M3U stream line by line. Each
// #EXTINF directive describes the entry whose URL follows on the next
// non-comment line.
func parsePlaylist(r io.Reader) ([]catalog.ParsedItem, error) {
	var out []catalog.ParsedItem
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 512*1024)

	var attrs map[string]string

	emit := func(streamURL string) {
		name := attrs["name"]
		if name == "" {
			name = attrs["tvg-name"]
		}
		if name == "" || streamURL == "" {
			return
		}

		externalID := attrs["tvg-id"]
		if externalID == "" {
			externalID = streamURL
		}

		item := catalog.ParsedItem{
			ExternalID:  externalID,
			ContentType: classifyEntry(attrs, streamURL),
			Title:       name,
			StreamRef:   streamURL,
			QualityHint: qualityFromName(name),
		}
		if m := yearSuffix.FindStringSubmatch(name); m != nil {
			if year, err := strconv.Atoi(m[1]); err == nil {
				item.Year = year
				item.Title = strings.TrimSpace(yearSuffix.ReplaceAllString(name, ""))
			}
		}
		out = append(out, item)
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			attrs = parseExtinf(line)
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if attrs != nil && (strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://")) {
			emit(line)
			attrs = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// classifyEntry decides the content type of a playlist entry. Live
// playlists carry group-title attributes; VOD entries typically point
// at container files.
func classifyEntry(attrs map[string]string, streamURL string) catalog.ContentType {
	group := strings.ToLower(attrs["group-title"])
	switch {
	case strings.Contains(group, "series"):
		return catalog.ContentTypeSeries
	case strings.Contains(group, "movie"), strings.Contains(group, "vod"):
		return catalog.ContentTypeMovie
	}

	ext := strings.ToLower(streamURL)
	for _, suffix := range []string{".mp4", ".mkv", ".avi"} {
		if strings.HasSuffix(ext, suffix) {
			return catalog.ContentTypeMovie
		}
	}
	return catalog.ContentTypeChannel
}

// qualityFromName extracts a quality marker from a display name.
func qualityFromName(name string) catalog.QualityHint {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "2160p"), strings.Contains(lower, "4k"), strings.Contains(lower, "uhd"):
		return catalog.QualityUHD
	case strings.Contains(lower, "1080p"), strings.Contains(lower, "fhd"):
		return catalog.QualityFHD
	case strings.Contains(lower, "720p"), strings.Contains(lower, " hd"), strings.HasSuffix(lower, "hd"):
		return catalog.QualityHD
	case strings.Contains(lower, "480p"), strings.Contains(lower, " sd"), strings.HasSuffix(lower, "sd"):
		return catalog.QualitySD
	default:
		return catalog.QualityUnknown
	}
}

// parseExtinf parses one #EXTINF line into its attribute map. The
// display name after the last comma is stored under "name".
func parseExtinf(line string) map[string]string {
	m := make(map[string]string)
	line = strings.TrimPrefix(line, "#EXTINF:")
	if idx := strings.LastIndex(line, ","); idx >= 0 && idx+1 < len(line) {
		m["name"] = strings.TrimSpace(line[idx+1:])
		line = line[:idx]
	}
	for {
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			break
		}
		before := strings.TrimSpace(line[:eq])
		key := before
		if idx := strings.LastIndex(before, " "); idx >= 0 {
			key = strings.TrimSpace(before[idx+1:])
		}
		line = strings.TrimSpace(line[eq+1:])
		if len(line) < 2 {
			break
		}
		quote := line[0]
		if quote != '"' && quote != '\'' {
			break
		}
		line = line[1:]
		end := strings.IndexByte(line, quote)
		if end < 0 {
			break
		}
		m[key] = line[:end]
		line = line[end+1:]
	}
	return m
}
