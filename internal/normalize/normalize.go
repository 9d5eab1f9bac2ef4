// Package normalize maps raw, source-shaped listing payloads into the
// canonical flat record. Every canonical field is present in the output,
// nil when unresolvable; coercion failures degrade to nil and never abort a
// record.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/homescan/listing-crawler/internal/listing"
)

// truthy is the set of strings coerced to boolean true, case-insensitively.
var truthy = map[string]struct{}{"true": {}, "1": {}, "yes": {}}

// Normalize flattens one raw record. Many raw records wrap the real payload
// one level down under "property"; every field is checked on both levels with
// the nested object preferred when non-nil.
func Normalize(raw listing.RawRecord) listing.Record {
	item := raw
	if item == nil {
		item = listing.RawRecord{}
	}
	prop := asMap(item["property"])

	price := asMap(pick(item, prop, "price"))
	size := asMap(pick(item, prop, "size"))
	loc := asMap(pick(item, prop, "location"))
	coords := asMap(loc["coordinates"])
	agent := asMap(pick(item, prop, "agent"))
	broker := asMap(pick(item, prop, "broker"))

	return listing.Record{
		PropertyID:   toString(pick(item, prop, "id")),
		Reference:    toString(pick(item, prop, "reference")),
		Title:        toString(pick(item, prop, "title")),
		PropertyType: toString(pick(item, prop, "property_type")),
		OfferingType: toString(pick(item, prop, "offering_type")),
		Description:  toString(pick(item, prop, "description")),

		PriceValue:    toNumber(price["value"]),
		PriceCurrency: toString(price["currency"]),
		PriceIsHidden: toBool(price["is_hidden"]),
		PricePeriod:   toString(price["period"]),

		PropertyVideoURL:   toString(pick(item, prop, "video_url")),
		PropertyHasView360: toBool(pick(item, prop, "has_view_360")),

		SizeValue:        toNumber(size["value"]),
		SizeUnit:         toString(size["unit"]),
		Bedrooms:         toNumber(pick(item, prop, "bedrooms")),
		Bathrooms:        toNumber(pick(item, prop, "bathrooms")),
		Furnished:        toString(pick(item, prop, "furnished")),
		CompletionStatus: toString(pick(item, prop, "completion_status")),

		LocationID:       toString(loc["id"]),
		LocationPath:     toString(loc["path"]),
		LocationType:     toString(loc["type"]),
		LocationFullName: toString(loc["full_name"]),
		LocationName:     toString(loc["name"]),
		LocationLat:      toNumber(coords["lat"]),
		LocationLon:      toNumber(coords["lon"]),

		Amenities:   toJSONString(pick(item, prop, "amenities")),
		IsAvailable: toBool(pick(item, prop, "is_available")),
		IsNewInsert: toBool(pick(item, prop, "is_new_insert")),
		ListedDate:  listedDate(item, prop),
		LiveViewing: toString(pick(item, prop, "live_viewing")),
		QS:          toString(pick(item, prop, "qs")),
		RSP:         toString(pick(item, prop, "rsp")),
		RSS:         toString(pick(item, prop, "rss")),

		PropertyIsAvailable:              toBool(pick(item, prop, "is_available")),
		PropertyIsVerified:               toBool(pick(item, prop, "is_verified")),
		PropertyIsDirectFromDeveloper:    toBool(pick(item, prop, "is_direct_from_developer")),
		PropertyIsNewConstruction:        toBool(pick(item, prop, "is_new_construction")),
		PropertyIsFeatured:               toBool(pick(item, prop, "is_featured")),
		PropertyIsPremium:                toBool(pick(item, prop, "is_premium")),
		PropertyIsExclusive:              toBool(pick(item, prop, "is_exclusive")),
		PropertyIsBrokerProjectProperty:  toBool(pick(item, prop, "is_broker_project_property")),
		PropertyIsSmartAd:                toBool(pick(item, prop, "is_smart_ad")),
		PropertyIsSpotlightListing:       toBool(pick(item, prop, "is_spotlight_listing")),
		PropertyIsClaimedByAgent:         toBool(pick(item, prop, "is_claimed_by_agent")),
		PropertyIsUnderOfferByCompetitor: toBool(pick(item, prop, "is_under_offer_by_competitor")),
		PropertyIsCommunityExpert:        toBool(pick(item, prop, "is_community_expert")),
		PropertyIsCTS:                    toBool(pick(item, prop, "is_cts")),

		AgentIsSuperAgent: toBool(agent["is_super_agent"]),
		BrokerName:        toString(broker["name"]),
		ListingType:       toString(pick(item, prop, "listing_type")),
		CategoryID:        toString(pick(item, prop, "category_id")),
		PropertyImages:    imageURLs(pick(item, prop, "images"), pick(item, prop, "image")),
		PropertyTypeID:    toString(pick(item, prop, "property_type_id")),

		PropertyUtilitiesPriceType: toString(pick(item, prop, "utilities_price_type")),
		ContactOptions:             toJSONString(pick(item, prop, "contact_options")),

		AgentID:        toString(agent["id"]),
		AgentUserID:    toString(agent["user_id"]),
		AgentName:      toString(agent["name"]),
		AgentImage:     toString(agent["image"]),
		AgentLanguages: toJSONString(agent["languages"]),
		BrokerLogo:     toString(broker["logo"]),
		AgentEmail:     toString(agent["email"]),
		BrokerID:       toString(broker["id"]),
		BrokerEmail:    toString(broker["email"]),
		BrokerPhone:    toString(broker["phone"]),
		BrokerAddress:  toString(broker["address"]),
	}
}

// AgeFields returns the absolute timestamp and relative-age phrase used by
// the recency gate, honoring the same nested-object preference as the field
// mapping. The relative phrase may itself be a localized object.
func AgeFields(raw listing.RawRecord) (listedAt string, timeAgo string) {
	prop := asMap(raw["property"])
	if s := toString(pick(raw, prop, "listed_date")); s != nil {
		listedAt = *s
	}
	switch v := pick(raw, prop, "time_ago").(type) {
	case string:
		timeAgo = v
	case map[string]any:
		if s := toString(firstOf(v, "en", "text")); s != nil {
			timeAgo = *s
		}
	}
	return listedAt, timeAgo
}

// pick prefers the nested property object's value when non-nil, falling back
// to the top-level one.
func pick(item, prop map[string]any, key string) any {
	if prop != nil {
		if v, ok := prop[key]; ok && v != nil {
			return v
		}
	}
	if v, ok := item[key]; ok && v != nil {
		return v
	}
	return nil
}

func firstOf(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// listedDate keeps the source's temporal text: the ISO timestamp when
// present, otherwise the relative-age phrase.
func listedDate(item, prop map[string]any) *string {
	if s := toString(pick(item, prop, "listed_date")); s != nil {
		return s
	}
	switch t := pick(item, prop, "time_ago").(type) {
	case string:
		return toString(t)
	case map[string]any:
		return toString(firstOf(t, "en", "text"))
	}
	return nil
}

// toNumber accepts ints, floats, json.Number, and numeric strings with
// thousands separators. Anything else coerces to nil.
func toNumber(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case int64:
		f := float64(t)
		return &f
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return &f
		}
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return &f
		}
	}
	return nil
}

// toString stringifies scalars, trimming whitespace; empty strings and
// structured values become nil.
func toString(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	case json.Number:
		s := t.String()
		return &s
	default:
		return nil
	}
}

// toBool accepts real booleans and the known truthy string set; everything
// else falls through to a generic truthiness coercion.
func toBool(v any) *bool {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		return &t
	case string:
		_, ok := truthy[strings.ToLower(strings.TrimSpace(t))]
		return &ok
	case float64:
		b := t != 0
		return &b
	case int:
		b := t != 0
		return &b
	default:
		b := true
		return &b
	}
}

// toJSONString serializes nested structures (tags, contact options, language
// lists) to a flat string; empty or absent values become nil. Strings pass
// through unchanged.
func toJSONString(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return toString(t)
	case []any:
		if len(t) == 0 {
			return nil
		}
	case map[string]any:
		if len(t) == 0 {
			return nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// imageURLs resolves one URL per image entry, preferring the medium size
// hint, then large, small, and finally a bare url or link field, and
// serializes the resulting list. A singular image field is the last fallback.
func imageURLs(images any, image any) *string {
	src := images
	if src == nil {
		src = image
	}
	list, ok := src.([]any)
	if !ok {
		return toJSONString(src)
	}
	if len(list) == 0 {
		return nil
	}
	if _, isString := list[0].(string); isString {
		return toJSONString(list)
	}
	urls := make([]string, 0, len(list))
	for _, entry := range list {
		m, isMap := entry.(map[string]any)
		if !isMap {
			continue
		}
		if u := toString(firstOf(m, "medium", "large", "small", "url", "link")); u != nil {
			urls = append(urls, *u)
		}
	}
	if len(urls) == 0 {
		return nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}
