package insights

import (
	"bytes"
	"encoding/json"
	"time"
)

// Request identifies the area and business type to analyse.
type Request struct {
	ZipCode   string `json:"zipcode"`
	StoreType string `json:"storeType"`
}

// Coordinate is a resolved latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LocalizedText mirrors the places service display name object.
type LocalizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// Place is one store returned by the places service. The payload received
// from upstream is retained so it is persisted verbatim.
type Place struct {
	DisplayName      LocalizedText `json:"displayName"`
	FormattedAddress string        `json:"formattedAddress,omitempty"`
	Location         Coordinate    `json:"location"`
	PrimaryType      string        `json:"primaryType,omitempty"`
	Types            []string      `json:"types,omitempty"`
	Rating           *float64      `json:"rating,omitempty"`

	raw json.RawMessage
}

type placeFields Place

// UnmarshalJSON decodes the typed fields and keeps the original bytes.
func (p *Place) UnmarshalJSON(data []byte) error {
	var fields placeFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*p = Place(fields)
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON emits the upstream payload when one was captured.
func (p Place) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	return json.Marshal(placeFields(p))
}

// WeatherReport is the forecast payload passed through from upstream. When
// the lookup failed, Failure holds the reason and the payload is empty.
type WeatherReport struct {
	Payload json.RawMessage
	Failure string
}

// Available reports whether a forecast payload is present.
func (w WeatherReport) Available() bool {
	return w.Failure == "" && len(bytes.TrimSpace(w.Payload)) > 0
}

type weatherFailure struct {
	Error string `json:"error"`
}

// MarshalJSON writes the raw forecast, or {"error": ...} when the lookup failed.
func (w WeatherReport) MarshalJSON() ([]byte, error) {
	if w.Failure != "" {
		return json.Marshal(weatherFailure{Error: w.Failure})
	}
	if len(bytes.TrimSpace(w.Payload)) == 0 {
		return []byte("null"), nil
	}
	return w.Payload, nil
}

// UnmarshalJSON accepts either a forecast payload or an error record.
func (w *WeatherReport) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*w = WeatherReport{}
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil && len(fields) == 1 {
		if rawErr, ok := fields["error"]; ok {
			var msg string
			if err := json.Unmarshal(rawErr, &msg); err == nil {
				*w = WeatherReport{Failure: msg}
				return nil
			}
		}
	}
	*w = WeatherReport{Payload: append(json.RawMessage(nil), trimmed...)}
	return nil
}

// Conditions is a typed view over the fields requested from the forecast service.
type Conditions struct {
	Current struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
	} `json:"current"`
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
		Humidity    []float64 `json:"relative_humidity_2m"`
		WindSpeed   []float64 `json:"wind_speed_10m"`
	} `json:"hourly"`
}

// Conditions decodes the typed fields of the forecast payload.
func (w WeatherReport) Conditions() (Conditions, error) {
	var out Conditions
	if !w.Available() {
		return out, nil
	}
	err := json.Unmarshal(w.Payload, &out)
	return out, err
}

// LocationInsights is the aggregated record for a single run.
type LocationInsights struct {
	ZipCode string        `json:"zipcode"`
	Stores  []Place       `json:"stores"`
	Weather WeatherReport `json:"weather"`
}

// PlacesQuery is a text search issued to the places service.
type PlacesQuery struct {
	Text         string
	Bias         *Coordinate
	RadiusMeters float64
}

// Config wires runtime knobs for the aggregator.
type Config struct {
	BiasRadiusMeters float64
	CacheTTL         time.Duration
}
