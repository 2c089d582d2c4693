package leads

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	require.False(t, StatusRunning.Terminal())
	for _, s := range []Status{StatusFinished, StatusCancelled, StatusFailed} {
		require.True(t, s.Terminal(), "status %s", s)
	}
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		text    string
		stars   float64
		reviews int
	}{
		{name: "typical", text: "4.5 stars 120 Reviews", stars: 4.5, reviews: 120},
		{name: "thousands separator", text: "4.8 stars 1,204 Reviews", stars: 4.8, reviews: 1204},
		{name: "no reviews suffix", text: "3.0 stars 7", stars: 3.0, reviews: 7},
		{name: "missing stars keyword", text: "120 Reviews", stars: 0, reviews: 0},
		{name: "empty", text: "", stars: 0, reviews: 0},
		{name: "garbage", text: "open 24 hours", stars: 0, reviews: 0},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			stars, reviews := ParseRating(tc.text)
			require.Equal(t, tc.stars, stars)
			require.Equal(t, tc.reviews, reviews)
		})
	}
}

func TestMakeLeadIsTotal(t *testing.T) {
	t.Parallel()

	rec := BusinessRecord{
		PlaceID:    "ChIabc",
		StoreName:  "Blue Oven",
		WebsiteURL: "https://blueoven.example",
		VendorID:   "v1",
	}

	lead := MakeLead(rec, EnrichmentRecord{})
	require.Equal(t, rec, lead.BusinessRecord)
	require.Empty(t, lead.Email)
	require.Empty(t, lead.SocialLinks.Facebook)

	enr := EnrichmentRecord{
		About:   "family bakery",
		Email:   "hi@blueoven.example",
		SocialLinks: SocialLinks{
			Facebook:  "https://facebook.com/blueoven",
			Instagram: "https://instagram.com/blueoven",
		},
	}
	lead = MakeLead(rec, enr)
	require.Equal(t, "hi@blueoven.example", lead.Email)
	require.Equal(t, "https://facebook.com/blueoven", lead.SocialLinks.Facebook)
	require.Equal(t, "Blue Oven", lead.StoreName)
}
