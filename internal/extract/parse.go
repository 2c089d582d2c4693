package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// ParseBusinesses extracts raw business candidates from a rendered map search
// results page. Entries are anchors pointing at a place detail URL; all other
// attributes hang off the anchor's parent card. Missing fields parse to empty
// strings so downstream merging stays total.
func ParseBusinesses(html []byte, query leads.SearchQuery) ([]leads.BusinessRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []leads.BusinessRecord
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, "/maps/place/") {
			return
		}
		card := sel.Parent()

		placeURL, _ := card.Find("a").First().Attr("href")
		website, _ := card.Find(`a[data-value="Website"]`).Attr("href")
		storeName := strings.TrimSpace(card.Find("div.fontHeadlineSmall").First().Text())
		ratingText, _ := card.Find("span.fontBodyMedium > span").First().Attr("aria-label")
		imageURL, _ := card.Find("img").First().Attr("src")

		address, phone := addressAndPhone(card)
		stars, reviews := leads.ParseRating(ratingText)

		records = append(records, leads.BusinessRecord{
			PlaceID:         placeIDFromURL(placeURL),
			StoreName:       storeName,
			Address:         address,
			Category:        categoryFromAddress(address),
			ProjectCategory: query.BusinessCategory,
			Phone:           phone,
			ContactURL:      placeURL,
			WebsiteURL:      website,
			RatingText:      ratingText,
			Stars:           stars,
			NumberOfReviews: reviews,
			ImageURL:        imageURL,
			City:            query.City,
			VendorID:        query.VendorID,
		})
	})
	return records, nil
}

// addressAndPhone reads the last info row of the card body: its first cell
// holds "category · address", the last cell "hours · phone".
func addressAndPhone(card *goquery.Selection) (address, phone string) {
	body := card.Find("div.fontBodyMedium").First()
	lastRow := body.Children().Last()
	first := lastRow.Children().First()
	last := lastRow.Children().Last()

	address = strings.TrimSpace(first.Text())
	_, after, found := strings.Cut(last.Text(), "·")
	if found {
		phone = strings.TrimSpace(after)
	}
	return address, phone
}

func categoryFromAddress(address string) string {
	before, _, _ := strings.Cut(address, "·")
	return strings.TrimSpace(before)
}

// placeIDFromURL recovers the ChI-prefixed place identifier embedded in a
// place detail URL. Unparseable URLs yield an empty ID.
func placeIDFromURL(placeURL string) string {
	base, _, _ := strings.Cut(placeURL, "?")
	_, after, found := strings.Cut(base, "ChI")
	if !found {
		return ""
	}
	return "ChI" + after
}
