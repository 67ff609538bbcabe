package handler

import (
	"encoding/base64"
	"strings"

	"github.com/relaypost/tusgo/pkg/upload"
)

// parseMetadataHeader decodes an Upload-Metadata header of the form
// "key1 b64(value1),key2 b64(value2)" into an upload.Metadata map. Whitespace
// around commas and around the key/value separator is tolerated. An empty
// header yields an empty map. Malformed pairs are skipped rather than
// rejected outright.
func parseMetadataHeader(header string) upload.Metadata {
	meta := make(upload.Metadata)
	if header == "" {
		return meta
	}

	for _, pair := range strings.Split(header, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		key, rawValue, hasValue := strings.Cut(pair, " ")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		if !hasValue {
			meta[key] = ""
			continue
		}

		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(rawValue))
		if err != nil {
			continue
		}
		meta[key] = string(decoded)
	}

	return meta
}

// serializeMetadataHeader renders the given "key=value" pairs into
// Upload-Metadata wire form, in the order given, joined by ", ". meta itself
// is not read; only the explicit pairs are emitted. It is used for the HEAD
// response, which exposes exactly filename and filetype (each
// base64-encoded) and nothing else from the metadata map.
func serializeMetadataHeader(meta upload.Metadata, keys ...string) string {
	parts := make([]string, 0, len(keys))
	for _, pair := range keys {
		k, v, _ := strings.Cut(pair, "=")
		parts = append(parts, k+" "+base64.StdEncoding.EncodeToString([]byte(v)))
	}
	return strings.Join(parts, ", ")
}
