package telemetry

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// payloadKeys mark attributes that may carry media bytes, evidence frames or
// credentials. Matching is by substring of the lower-cased key.
var payloadKeys = []string{
	"suspicious_frames",
	"evidence",
	"payload",
	"base64",
	"data_uri",
	"content",
	"authorization",
	"api_key",
	"token",
	"secret",
}

const (
	maxAttrString = 256
	maxAttrSlice  = 32
)

// SafeAttributes drops attributes that could leak upload content into a
// trace: payload-named keys, data URIs and oversized strings. Slices are
// capped at maxAttrSlice entries.
func SafeAttributes(kvs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		if !kv.Valid() || isPayloadKey(string(kv.Key)) {
			continue
		}
		switch kv.Value.Type() {
		case attribute.STRING:
			if unsafeString(kv.Value.AsString()) {
				continue
			}
		case attribute.STRINGSLICE:
			vals := kv.Value.AsStringSlice()
			if len(vals) > maxAttrSlice {
				vals = vals[:maxAttrSlice]
			}
			kept := make([]string, 0, len(vals))
			for _, v := range vals {
				if !unsafeString(v) {
					kept = append(kept, v)
				}
			}
			kv = kv.Key.StringSlice(kept)
		case attribute.INT64SLICE:
			if vals := kv.Value.AsInt64Slice(); len(vals) > maxAttrSlice {
				kv = kv.Key.Int64Slice(vals[:maxAttrSlice])
			}
		case attribute.FLOAT64SLICE:
			if vals := kv.Value.AsFloat64Slice(); len(vals) > maxAttrSlice {
				kv = kv.Key.Float64Slice(vals[:maxAttrSlice])
			}
		}
		out = append(out, kv)
	}
	return out
}

func isPayloadKey(key string) bool {
	lk := strings.ToLower(key)
	for _, bad := range payloadKeys {
		if strings.Contains(lk, bad) {
			return true
		}
	}
	return false
}

func unsafeString(s string) bool {
	return len(s) > maxAttrString || strings.HasPrefix(s, "data:")
}
