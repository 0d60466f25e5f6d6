package epg

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// xmltvTimeLayout is the timestamp format used by XMLTV documents.
const xmltvTimeLayout = "20060102150405 -0700"

type xmltvProgramme struct {
	Start   string `xml:"start,attr"`
	Stop    string `xml:"stop,attr"`
	Channel string `xml:"channel,attr"`
	Title   string `xml:"title"`
	Desc    string `xml:"desc"`
}

type xmltvDocument struct {
	XMLName    xml.Name         `xml:"tv"`
	Programmes []xmltvProgramme `xml:"programme"`
}

// XMLTVFetcher retrieves guide data from an XMLTV endpoint. The
// endpoint is queried per channel; providers that only export full
// guides still work because entries for other channels are skipped.
type XMLTVFetcher struct {
	endpoint string
	client   *http.Client
	logger   zerolog.Logger
}

// NewXMLTVFetcher creates a fetcher for the given XMLTV endpoint.
func NewXMLTVFetcher(endpoint string, logger zerolog.Logger) *XMLTVFetcher {
	return &XMLTVFetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger.With().Str("component", "xmltv").Logger(),
	}
}

// FetchGuide downloads and parses guide entries for one channel.
func (f *XMLTVFetcher) FetchGuide(ctx context.Context, channelID string) ([]Entry, error) {
	if f.endpoint == "" {
		return nil, fmt.Errorf("no guide endpoint configured")
	}

	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse guide endpoint: %w", err)
	}
	q := u.Query()
	q.Set("channel", channelID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build guide request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch guide: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch guide: unexpected status %d", resp.StatusCode)
	}

	var doc xmltvDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse guide: %w", err)
	}

	var entries []Entry
	for _, p := range doc.Programmes {
		if p.Channel != channelID {
			continue
		}
		start, err := time.Parse(xmltvTimeLayout, p.Start)
		if err != nil {
			f.logger.Debug().Str("start", p.Start).Msg("skipping programme with bad start time")
			continue
		}
		stop, err := time.Parse(xmltvTimeLayout, p.Stop)
		if err != nil {
			f.logger.Debug().Str("stop", p.Stop).Msg("skipping programme with bad stop time")
			continue
		}
		entries = append(entries, Entry{
			ChannelID:   channelID,
			Title:       p.Title,
			StartTime:   start.UTC(),
			EndTime:     stop.UTC(),
			Description: p.Desc,
		})
	}

	f.logger.Debug().
		Str("channel", channelID).
		Int("entries", len(entries)).
		Msg("guide fetched")

	return entries, nil
}
