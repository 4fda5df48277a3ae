package quality

import (
	"testing"

	"DocQualityAnalyzer/internal/domain"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want domain.VerdictKind
	}{
		{"exact high", "high quality", domain.KindHighQuality},
		{"exact low", "low quality", domain.KindLowQuality},
		{"case insensitive", "This is clearly HIGH QUALITY content", domain.KindHighQuality},
		{"surrounding reasoning", "Let me think step by step... the document is low quality overall.", domain.KindLowQuality},
		{"both phrases", "It is not low quality, it is high quality.", domain.KindUnparseable},
		{"neither phrase", "The document seems fine to me.", domain.KindUnparseable},
		{"empty response", "", domain.KindUnparseable},
		{"mixed case low", "Low Quality", domain.KindLowQuality},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Parse(tc.raw); got != tc.want {
				t.Fatalf("Parse(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
