package variants

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OutputShape names the structural wrapping a generator answer came in.
type OutputShape string

const (
	OutputBareList    OutputShape = "bare_list"
	OutputVariantsKey OutputShape = "variants_key"
	OutputFirstList   OutputShape = "first_list"
	OutputNoList      OutputShape = "no_list"
)

const (
	MinAge      = 18
	MaxAge      = 99
	MinAttitude = 1
	MaxAttitude = 10
)

// Extraction is the list found in a generator answer plus what was seen around it.
type Extraction struct {
	Items []json.RawMessage
	Shape OutputShape
	Keys  []string // top-level keys in document order, when the answer is an object
}

// Normalized is the result of turning raw generator text into canonical variants.
type Normalized struct {
	Variants []*VariantProfile
	Shape    OutputShape
	Keys     []string
	Dropped  int
}

// StripFences removes markdown code fences around a JSON answer. When prose
// surrounds a fenced block, the first fenced block wins.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	body := s[start+3:]
	// drop the info string (```json)
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		info := strings.TrimSpace(body[:nl])
		if info == "" || !strings.ContainsAny(info, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractList applies the accepted-shape table in order:
//
//  1. the document is a list
//  2. the document is an object with a list under "variants"
//  3. the document is an object; the first top-level value that is a list, in document order
//  4. otherwise: no list (empty Items, no error)
//
// A document that does not parse is an error.
func ExtractList(raw []byte) (Extraction, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Extraction{}, fmt.Errorf("empty document")
	}
	if raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return Extraction{}, fmt.Errorf("parse list: %w", err)
		}
		return Extraction{Items: items, Shape: OutputBareList}, nil
	}

	keys, values, err := orderedObject(raw)
	if err != nil {
		return Extraction{}, err
	}
	out := Extraction{Keys: keys, Shape: OutputNoList}
	for i, k := range keys {
		if k == "variants" && isList(values[i]) {
			items, err := decodeList(values[i])
			if err != nil {
				return Extraction{}, err
			}
			out.Items, out.Shape = items, OutputVariantsKey
			return out, nil
		}
	}
	for i := range keys {
		if isList(values[i]) {
			items, err := decodeList(values[i])
			if err != nil {
				return Extraction{}, err
			}
			out.Items, out.Shape = items, OutputFirstList
			return out, nil
		}
	}
	return out, nil
}

// Normalize parses a generator answer into at most requested variant records
// for persona. Elements missing name, age or platform are dropped; numeric
// fields are coerced into range.
func Normalize(text string, persona PersonaID, requested int) (Normalized, error) {
	ex, err := ExtractList([]byte(StripFences(text)))
	if err != nil {
		return Normalized{}, err
	}
	out := Normalized{Shape: ex.Shape, Keys: ex.Keys}
	for _, item := range ex.Items {
		if requested > 0 && len(out.Variants) >= requested {
			break
		}
		v, ok := coerceVariant(item)
		if !ok {
			out.Dropped++
			continue
		}
		v.PersonaID = persona
		v.Index = len(out.Variants)
		out.Variants = append(out.Variants, v)
	}
	return out, nil
}

func orderedObject(raw []byte) ([]string, []json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("parse object: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("parse object: unexpected top-level value %v", tok)
	}
	var keys []string
	var values []json.RawMessage
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("parse object key: %w", err)
		}
		key, _ := kt.(string)
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("parse value of %q: %w", key, err)
		}
		keys = append(keys, key)
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("parse object end: %w", err)
	}
	return keys, values, nil
}

func isList(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

func decodeList(v json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, fmt.Errorf("parse list: %w", err)
	}
	return items, nil
}

func coerceVariant(item json.RawMessage) (*VariantProfile, bool) {
	var m map[string]any
	if err := json.Unmarshal(item, &m); err != nil {
		return nil, false
	}
	name := firstString(m, "name", "full_name")
	platform := firstString(m, "primary_platform", "platform")
	age, ageOK := toInt(first(m, "age"))
	if name == "" || platform == "" || !ageOK {
		return nil, false
	}
	attitude, ok := toInt(first(m, "attitude_score", "attitude"))
	if !ok {
		attitude = 5
	}
	tier := EngagementTier(strings.ToLower(firstString(m, "engagement_tier", "engagement")))
	if !tier.Valid() {
		tier = TierModerate
	}
	return &VariantProfile{
		Name:                name,
		Age:                 clamp(age, MinAge, MaxAge),
		Location:            firstString(m, "location"),
		AttitudeScore:       clamp(attitude, MinAttitude, MaxAttitude),
		PrimaryPlatform:     platform,
		EngagementTier:      tier,
		DistinguishingTrait: firstString(m, "distinguishing_trait", "trait"),
		VoiceModifier:       firstString(m, "voice_modifier", "voice"),
	}, true
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	if s, ok := first(m, keys...).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return int(math.Round(t)), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return int(math.Round(f)), true
	}
	return 0, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
