package scraper

import "github.com/codewidneha/kitchenhub/config"

// The big three delivery platforms the aggregator currently scrapes.
// Each exposes listings under a different path and envelope key.

func NewSwiggy(baseURL string, retry config.AdapterConfig) Adapter {
	return newJSONClient("swiggy", baseURL, "/dapi/restaurants/search", "kitchens", retry)
}

func NewZomato(baseURL string, retry config.AdapterConfig) Adapter {
	return newJSONClient("zomato", baseURL, "/v2/search", "restaurants", retry)
}

func NewEatSure(baseURL string, retry config.AdapterConfig) Adapter {
	return newJSONClient("eatsure", baseURL, "/api/outlets", "outlets", retry)
}
