// Package extractors recovers the real media URL from the target site's
// obfuscated embed pages and shapes the surrounding tracks into an
// ExtractionResult.
package extractors

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// mixMagic is the constant the player's mixer has used across every
// observed version of the scheme.
const mixMagic = 399756995

// Stage is one named cipher transform, operating on raw bytes so the
// base64 stage can hand single-byte characters to the unmix stage.
type Stage func([]byte) ([]byte, error)

// The stage order has changed upstream at least twice with no version
// signal, so the order is configuration, not code. Individual stages are
// stable; only their composition drifts.
var stageTable = map[string]Stage{
	"rot13":   stageRot13,
	"reverse": stageReverse,
	"base64":  stageBase64,
	"unmix":   stageUnmix,
}

// DefaultOrder is the composition the site currently serves.
var DefaultOrder = []string{"rot13", "reverse", "base64", "unmix"}

// historicalOrders are compositions observed in earlier versions, tried as
// fallbacks when the configured order yields garbage.
var historicalOrders = [][]string{
	{"reverse", "rot13", "base64", "unmix"},
	{"base64", "reverse", "rot13", "unmix"},
}

// Pipeline applies a fixed stage order to cipher payloads.
type Pipeline struct {
	names  []string
	stages []Stage
}

// NewPipeline builds a pipeline from stage names.
func NewPipeline(order []string) (*Pipeline, error) {
	if len(order) == 0 {
		order = DefaultOrder
	}
	p := &Pipeline{names: order}
	for _, name := range order {
		stage, ok := stageTable[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher stage %q", name)
		}
		p.stages = append(p.stages, stage)
	}
	return p, nil
}

// Order returns the pipeline's stage names.
func (p *Pipeline) Order() []string {
	return append([]string(nil), p.names...)
}

// Decode concatenates the payload parts and runs them through the stages.
// Deterministic: the same parts always yield byte-identical output.
func (p *Pipeline) Decode(parts []string) (string, error) {
	data := []byte(strings.Join(parts, ""))
	for i, stage := range p.stages {
		out, err := stage(data)
		if err != nil {
			return "", fmt.Errorf("stage %s: %w", p.names[i], err)
		}
		data = out
	}
	return string(data), nil
}

// DecodeAuto decodes with the preferred pipeline, falling back to known
// historical stage orders when the output is not a well-formed URL. There is
// no other way to detect which order the site currently uses.
func DecodeAuto(parts []string, preferred *Pipeline) (string, error) {
	candidates := []*Pipeline{preferred}
	for _, order := range historicalOrders {
		if p, err := NewPipeline(order); err == nil {
			candidates = append(candidates, p)
		}
	}

	var lastErr error
	for _, pipeline := range candidates {
		decoded, err := pipeline.Decode(parts)
		if err != nil {
			lastErr = err
			continue
		}
		if LooksLikeURL(decoded) {
			return decoded, nil
		}
		lastErr = fmt.Errorf("decoded output is not a URL")
	}
	return "", fmt.Errorf("all stage orders failed: %w", lastErr)
}

// LooksLikeURL is the post-decode sanity check that arbitrates between
// stage orders.
func LooksLikeURL(s string) bool {
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func stageRot13(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, c := range data {
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = 'a' + (c-'a'+13)%26
		case c >= 'A' && c <= 'Z':
			out[i] = 'A' + (c-'A'+13)%26
		default:
			out[i] = c
		}
	}
	return out, nil
}

func stageReverse(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, c := range data {
		out[len(data)-1-i] = c
	}
	return out, nil
}

func stageBase64(data []byte) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// stageUnmix shifts each byte backward by mixMagic mod (i+5), modulo 256.
func stageUnmix(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, c := range data {
		shift := byte(mixMagic % (i + 5))
		out[i] = c - shift
	}
	return out, nil
}
