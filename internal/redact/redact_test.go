package redact

import (
	"strings"
	"testing"
)

func TestStringRedaction(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		disallow []string
		require  []string
	}{
		{
			name:     "bearer header",
			input:    "Authorization: Bearer sk-secret-123",
			disallow: []string{"sk-secret-123"},
			require:  []string{"[REDACTED]"},
		},
		{
			name:     "basic auth",
			input:    "authorization=Basic dXNlcjpwYXNz",
			disallow: []string{"dXNlcjpwYXNz"},
			require:  []string{"authorization=Basic [REDACTED]"},
		},
		{
			name:    "onnx path untouched",
			input:   "load image model: open models/image/model.onnx: no such file",
			require: []string{"models/image/model.onnx"},
		},
		{
			name:     "webhook url",
			input:    "sink=https://hooks.example.com/services/T000/B000/events?sig=abc123",
			disallow: []string{"T000/B000", "sig=abc123"},
			require:  []string{"https://hooks.example.com/events"},
		},
		{
			name:     "mixed token",
			input:    "Bearer abc key=supersecret token=anotherone X-Webhook-Secret: hunter22 url=https://recv.example.test/files/base/",
			disallow: []string{"abc", "supersecret", "anotherone", "hunter22", "files/base/"},
			require:  []string{"[REDACTED]", "https://recv.example.test/[REDACTED_PATH]"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := String(tc.input)
			for _, bad := range tc.disallow {
				if bad != "" && contains(out, bad) {
					t.Fatalf("output still contains %q: %s", bad, out)
				}
			}
			for _, want := range tc.require {
				if want == "" {
					continue
				}
				if !contains(out, want) {
					t.Fatalf("output missing required substring %q: %s", want, out)
				}
			}
		})
	}
}

func TestDataURIsCollapse(t *testing.T) {
	payload := strings.Repeat("QUJD", 1000) // "ABC" x 1000
	in := `{"suspicious_frames":["data:image/jpeg;base64,` + payload + `"],"label":"FAKE"}`
	out := String(in)
	if strings.Contains(out, payload) {
		t.Fatalf("payload survived: %.80s", out)
	}
	if !strings.Contains(out, "data:image/jpeg;base64,[3000 bytes]") {
		t.Fatalf("missing size marker: %s", out)
	}
	if !strings.Contains(out, `"label":"FAKE"`) {
		t.Fatalf("surrounding JSON altered: %s", out)
	}
}

func TestDataURIsPadding(t *testing.T) {
	out := DataURIs("data:image/png;base64,QUI=")
	if out != "data:image/png;base64,[2 bytes]" {
		t.Fatalf("got %s", out)
	}
	if DataURIs("no payload here") != "no payload here" {
		t.Fatalf("plain text altered")
	}
}

func TestURL(t *testing.T) {
	cases := map[string]string{
		"https://user:pw@hooks.example.com/a/b/events?sig=1#x": "https://hooks.example.com/events",
		"http://127.0.0.1:9000/":                               "http://127.0.0.1:9000/[REDACTED_PATH]",
		"http://recv.example.test":                             "http://recv.example.test/[REDACTED_PATH]",
		"not a url":                                            "[REDACTED_URL]",
	}
	for in, want := range cases {
		if got := URL(in); got != want {
			t.Fatalf("URL(%q) = %q, want %q", in, got, want)
		}
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
