package recommend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yeopl/route-planner/internal/types"
)

func formatErr(raw, reason string, args ...any) error {
	return &types.FormatError{Reason: fmt.Sprintf(reason, args...), Raw: raw}
}

// ParseRoute validates model output of the form {"route": Place[]}. Every
// element must be an object with a non-empty id and name and numeric lat/lng;
// ids must be unique. The text is parsed as is: fenced or prose-wrapped output
// is a format error.
func ParseRoute(raw string) ([]types.Place, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &envelope); err != nil {
		return nil, formatErr(raw, "output is not a JSON object: %v", err)
	}

	rawRoute, ok := envelope["route"]
	if !ok {
		return nil, formatErr(raw, `missing "route" key`)
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(rawRoute, &elements); err != nil || elements == nil {
		return nil, formatErr(raw, `"route" is not an array`)
	}

	places := make([]types.Place, 0, len(elements))
	seen := make(map[string]struct{}, len(elements))
	for i, el := range elements {
		p, err := parsePlace(el)
		if err != nil {
			return nil, formatErr(raw, "route[%d]: %v", i, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, formatErr(raw, "route[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		places = append(places, p)
	}
	return places, nil
}

func parsePlace(el json.RawMessage) (types.Place, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(el, &fields); err != nil || fields == nil {
		return types.Place{}, fmt.Errorf("element is not an object")
	}

	id, err := idField(fields["id"])
	if err != nil {
		return types.Place{}, err
	}
	name, err := stringField(fields, "name", true)
	if err != nil {
		return types.Place{}, err
	}
	lat, err := numberField(fields, "lat")
	if err != nil {
		return types.Place{}, err
	}
	lng, err := numberField(fields, "lng")
	if err != nil {
		return types.Place{}, err
	}
	address, err := stringField(fields, "address", false)
	if err != nil {
		return types.Place{}, err
	}

	return types.Place{ID: id, Name: name, Lat: types.Float(lat), Lng: types.Float(lng), Address: address}, nil
}

// idField accepts a non-empty string or a number, which models sometimes
// emit for ids.
func idField(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf(`missing "id"`)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", fmt.Errorf(`empty "id"`)
		}
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf(`"id" must be a string`)
}

func stringField(fields map[string]json.RawMessage, key string, required bool) (string, error) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(raw, []byte("null")) {
		if required {
			return "", fmt.Errorf("missing %q", key)
		}
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%q must be a string", key)
	}
	if required && strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("empty %q", key)
	}
	return s, nil
}

func numberField(fields map[string]json.RawMessage, key string) (float64, error) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing %q", key)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("%q must be a number", key)
	}
	return f, nil
}
