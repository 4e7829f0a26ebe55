package types

import "strconv"

// Candidate is one keyword-search hit. X/Y keep the provider's native axis
// order: X is longitude, Y is latitude, both as decimal strings.
type Candidate struct {
	ID              string `json:"id"`
	PlaceName       string `json:"place_name"`
	X               string `json:"x"`
	Y               string `json:"y"`
	RoadAddressName string `json:"road_address_name,omitempty"`
	AddressName     string `json:"address_name,omitempty"`
	CategoryName    string `json:"category_name,omitempty"`
	PlaceURL        string `json:"place_url,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

// BestAddress prefers the road address over the lot address.
func (c Candidate) BestAddress() string {
	if c.RoadAddressName != "" {
		return c.RoadAddressName
	}
	return c.AddressName
}

// Coordinates parses Y/X into latitude/longitude.
func (c Candidate) Coordinates() (lat, lng float64, err error) {
	lat, err = strconv.ParseFloat(c.Y, 64)
	if err != nil {
		return 0, 0, err
	}
	lng, err = strconv.ParseFloat(c.X, 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// ToPlace converts a hit into an itinerary entry. Unparsable coordinates
// leave Lat/Lng unset so the place is listed but not plotted.
func (c Candidate) ToPlace() Place {
	p := Place{
		ID:      c.ID,
		Name:    c.PlaceName,
		Address: c.BestAddress(),
	}
	if lat, lng, err := c.Coordinates(); err == nil {
		p.Lat, p.Lng = Float(lat), Float(lng)
	}
	return p
}

type SearchResponse struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
	Places     []Place     `json:"places"`
}
