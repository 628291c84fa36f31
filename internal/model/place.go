// Package model defines the records produced by a maps scrape run.
package model

import (
	"net/url"
	"regexp"
	"strings"
)

// Flag is a Yes/No amenity marker.
type Flag string

const (
	FlagNo  Flag = "No"
	FlagYes Flag = "Yes"
)

// Place is one business listing extracted from a detail page.
type Place struct {
	Name           string   `json:"name" csv:"name" db:"name"`
	Address        string   `json:"address" csv:"address" db:"address"`
	Website        string   `json:"website" csv:"website" db:"website"`
	PhoneNumber    string   `json:"phone_number" csv:"phone_number" db:"phone_number"`
	ReviewsCount   *int     `json:"reviews_count,omitempty" csv:"reviews_count" db:"reviews_count"`
	ReviewsAverage *float64 `json:"reviews_average,omitempty" csv:"reviews_average" db:"reviews_average"`
	StoreShopping  Flag     `json:"store_shopping" csv:"store_shopping" db:"store_shopping"`
	InStorePickup  Flag     `json:"in_store_pickup" csv:"in_store_pickup" db:"in_store_pickup"`
	StoreDelivery  Flag     `json:"store_delivery" csv:"store_delivery" db:"store_delivery"`
	PlaceType      string   `json:"place_type" csv:"place_type" db:"place_type"`
	OpensAt        string   `json:"opens_at" csv:"opens_at" db:"opens_at"`
	Introduction   string   `json:"introduction" csv:"introduction" db:"introduction"`
	SourceURL      string   `json:"url" csv:"url" db:"url"`
}

// NewPlace returns a Place with every defaulted field set.
func NewPlace() Place {
	return Place{
		StoreShopping: FlagNo,
		InStorePickup: FlagNo,
		StoreDelivery: FlagNo,
	}
}

// Viable reports whether the place can be kept in a result set.
func (p Place) Viable() bool {
	return p.Name != ""
}

// CandidateRef is a discovered listing that has not been visited yet.
type CandidateRef struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Query string `json:"query"`
}

// NewCandidateRef builds a CandidateRef for href found while searching query.
func NewCandidateRef(href, query string) CandidateRef {
	return CandidateRef{
		ID:    ListingKey(href),
		URL:   href,
		Query: query,
	}
}

// featureIDRe matches the feature id segment of a place URL's data parameter,
// e.g. "!1s0x47e66e2964e34e2d:0x8ddca9ee380ef7e0".
var featureIDRe = regexp.MustCompile(`!1s(0x[0-9a-fA-F]+:0x[0-9a-fA-F]+)`)

// ListingKey derives the identifier of a listing from its URL. The feature id
// is preferred; otherwise the URL without query string or fragment is used.
func ListingKey(href string) string {
	if m := featureIDRe.FindStringSubmatch(href); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
