package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether a flag is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API,
// trimmed to the fields the resolver and price sources need. Several list
// fields arrive as JSON-encoded strings, e.g. "[\"Yes\",\"No\"]".
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	ConditionID   string   `json:"conditionId"`
	Slug          string   `json:"slug"`
	Active        flexBool `json:"active"`
	Closed        flexBool `json:"closed"`
	Outcomes      string   `json:"outcomes"`
	OutcomePrices string   `json:"outcomePrices"`
	ClobTokenIDs  string   `json:"clobTokenIds"`
}

// parseStringArray decodes a Gamma stringified JSON array like
// "[\"123\",\"456\"]" into its elements. A blank input yields nil.
func parseStringArray(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// parseFloatArray decodes a stringified JSON array of numeric strings into
// floats, e.g. "[\"0.62\",\"0.38\"]".
func parseFloatArray(s string) ([]float64, error) {
	elems, err := parseStringArray(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(elems))
	for _, e := range elems {
		v, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
