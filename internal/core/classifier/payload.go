package classifier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lueurxax/media-guard-bot/internal/core/domain"
)

const (
	modulesKey       = "modules"
	flatModulePrefix = "modules."
	nsfwModule       = "nsfw_scanner"
	ratingSafe       = "rating:safe"
)

// Tag sources tried in order when the payload has no top-level tags array.
var moduleTagPaths = []struct {
	module string
	path   string
}{
	{module: "deepdanbooru_tags", path: "tags"},
	{module: "tagging", path: "tags"},
	{module: "image_storage", path: "metadata.danbooru_tags"},
	{module: "image_storage", path: "metadata.tags"},
}

// Normalize converts a /check or /batch response into the canonical {tags, scores} shape.
// Module results may be nested under "modules" or flattened as "modules.<name>" keys.
func Normalize(raw []byte) (*domain.Classification, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: not JSON", ErrInvalidPayload)
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidPayload)
	}

	modules := collectModules(root)

	return &domain.Classification{
		Tags:   extractTags(root, modules),
		Scores: extractScores(root, modules),
	}, nil
}

func collectModules(root gjson.Result) map[string]gjson.Result {
	modules := make(map[string]gjson.Result)

	if nested := root.Get(modulesKey); nested.IsObject() {
		nested.ForEach(func(key, value gjson.Result) bool {
			modules[key.String()] = value
			return true
		})
	}

	root.ForEach(func(key, value gjson.Result) bool {
		if name, ok := strings.CutPrefix(key.String(), flatModulePrefix); ok {
			modules[name] = value
		}

		return true
	})

	return modules
}

func extractTags(root gjson.Result, modules map[string]gjson.Result) []string {
	if tags := root.Get("tags"); tags.IsArray() {
		return tagLabels(tags)
	}

	for _, src := range moduleTagPaths {
		module, ok := modules[src.module]
		if !ok {
			continue
		}

		if tags := module.Get(src.path); tags.IsArray() {
			return tagLabels(tags)
		}
	}

	return []string{}
}

func tagLabels(arr gjson.Result) []string {
	out := make([]string, 0, len(arr.Array()))

	for _, entry := range arr.Array() {
		label := entry.String()
		if entry.IsObject() {
			label = firstNonEmpty(entry, "label", "name", "tag")
		}

		if label == "" || strings.EqualFold(label, ratingSafe) {
			continue
		}

		out = append(out, label)
	}

	return out
}

func firstNonEmpty(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.String() != "" {
			return v.String()
		}
	}

	return ""
}

func extractScores(root gjson.Result, modules map[string]gjson.Result) map[string]float64 {
	for _, key := range []string{"scores", "score"} {
		if s := numericFields(root.Get(key)); len(s) > 0 {
			return s
		}
	}

	nsfw, ok := modules[nsfwModule]
	if !ok || !nsfw.IsObject() {
		return map[string]float64{}
	}

	if nested := nsfw.Get("scores"); nested.IsObject() {
		return numericFields(nested)
	}

	return numericFields(nsfw)
}

// numericFields keeps the number and numeric-string members of an object.
func numericFields(obj gjson.Result) map[string]float64 {
	out := make(map[string]float64)
	if !obj.IsObject() {
		return out
	}

	obj.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Number:
			out[key.String()] = value.Float()
		case gjson.String:
			if f, err := strconv.ParseFloat(strings.TrimSpace(value.Str), 64); err == nil {
				out[key.String()] = f
			}
		default:
		}

		return true
	})

	return out
}
