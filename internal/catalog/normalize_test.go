package catalog

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		wantBase string
		wantHint string
	}{
		{
			name:     "plain title",
			title:    "The Matrix",
			wantBase: "the matrix",
		},
		{
			name:     "trailing subtitle stripped",
			title:    "Mission: Impossible",
			wantBase: "mission",
		},
		{
			name:     "integer sequel marker retained as hint",
			title:    "Terminator 2",
			wantBase: "terminator",
			wantHint: "2",
		},
		{
			name:     "roman numeral sequel marker",
			title:    "Rocky III",
			wantBase: "rocky",
			wantHint: "3",
		},
		{
			name:     "single letter roman not treated as sequel",
			title:    "Malcolm X",
			wantBase: "malcolm x",
		},
		{
			name:     "known sequel token stripped",
			title:    "The Matrix Reloaded",
			wantBase: "the matrix",
		},
		{
			name:     "sequel token alone is kept",
			title:    "Legacy",
			wantBase: "legacy",
		},
		{
			name:     "diacritics folded",
			title:    "Amélie",
			wantBase: "amelie",
		},
		{
			name:     "punctuation and case folded",
			title:    "WALL-E",
			wantBase: "wall e",
		},
		{
			name:     "subtitle then sequel token",
			title:    "Tron: Legacy",
			wantBase: "tron",
		},
		{
			name:     "bare number is not a sequel marker",
			title:    "1917",
			wantBase: "1917",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.title)
			if got.Base != tt.wantBase {
				t.Errorf("Normalize(%q).Base = %q, want %q", tt.title, got.Base, tt.wantBase)
			}
			if got.SequenceHint != tt.wantHint {
				t.Errorf("Normalize(%q).SequenceHint = %q, want %q", tt.title, got.SequenceHint, tt.wantHint)
			}
		})
	}
}

func TestGroupKeySeparatesSequenceAndYear(t *testing.T) {
	base := Item{ContentType: ContentTypeMovie, NormalizedTitle: "the matrix", Year: 1999}
	sequel := base
	sequel.SequenceHint = "2"

	if GroupKey(base) == GroupKey(sequel) {
		t.Fatal("sequence hint should separate group keys")
	}

	remake := base
	remake.Year = 2021
	if GroupKey(base) == GroupKey(remake) {
		t.Fatal("year bucket should separate group keys")
	}
}

func TestValidate(t *testing.T) {
	valid := ParsedItem{ExternalID: "m1", ContentType: ContentTypeMovie, Title: "Heat", StreamRef: "http://x/1.ts"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	cases := map[string]ParsedItem{
		"empty title":     {ExternalID: "m1", ContentType: ContentTypeMovie, StreamRef: "s"},
		"empty id":        {ContentType: ContentTypeMovie, Title: "Heat", StreamRef: "s"},
		"bad type":        {ExternalID: "m1", ContentType: "vhs", Title: "Heat", StreamRef: "s"},
		"empty streamRef": {ExternalID: "m1", ContentType: ContentTypeMovie, Title: "Heat"},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			err := item.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %T, want *ValidationError", err)
			}
		})
	}
}
