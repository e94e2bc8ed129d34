package config

import (
	"errors"
	"strings"
	"testing"
)

func validFindJSON() string {
	return `{
		"command": "Find",
		"find": {
			"keySources": [{"id": "seed1", "type": "seeded-random", "seed": 1}],
			"producers": [{"keySourceId": "seed1", "type": "cpu", "gridBits": 4}],
			"consumer": {"storePath": "addresses.db", "hitSinkPath": "hits.txt"}
		}
	}`
}

func TestLoadValidFindConfig(t *testing.T) {
	cfg, err := Load(strings.NewReader(validFindJSON()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Command != CommandFind {
		t.Fatalf("got command %q, want Find", cfg.Command)
	}
	if len(cfg.Find.KeySources) != 1 {
		t.Fatalf("got %d key sources, want 1", len(cfg.Find.KeySources))
	}
}

func TestLoadRejectsDuplicateKeySourceID(t *testing.T) {
	doc := `{
		"command": "Find",
		"find": {
			"keySources": [
				{"id": "a", "type": "secure-random"},
				{"id": "a", "type": "secure-random"}
			],
			"producers": [],
			"consumer": {"storePath": "s.db", "hitSinkPath": "h.txt"}
		}
	}`
	_, err := Load(strings.NewReader(doc))
	if !errors.Is(err, ErrDuplicateKeySourceID) {
		t.Fatalf("got %v, want ErrDuplicateKeySourceID", err)
	}
}

func TestLoadRejectsUnknownKeySourceReference(t *testing.T) {
	doc := `{
		"command": "Find",
		"find": {
			"keySources": [{"id": "a", "type": "secure-random"}],
			"producers": [{"keySourceId": "does-not-exist", "type": "cpu", "gridBits": 4}],
			"consumer": {"storePath": "s.db", "hitSinkPath": "h.txt"}
		}
	}`
	_, err := Load(strings.NewReader(doc))
	if !errors.Is(err, ErrUnknownKeySourceID) {
		t.Fatalf("got %v, want ErrUnknownKeySourceID", err)
	}
}

func TestLoadRejectsGridBitsOutOfRange(t *testing.T) {
	doc := `{
		"command": "Find",
		"find": {
			"keySources": [{"id": "a", "type": "secure-random"}],
			"producers": [{"keySourceId": "a", "type": "cpu", "gridBits": 200}],
			"consumer": {"storePath": "s.db", "hitSinkPath": "h.txt"}
		}
	}`
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Fatal("expected a grid-bits validation error")
	}
}

func TestLoadRejectsMissingKeySourceID(t *testing.T) {
	doc := `{
		"command": "Find",
		"find": {
			"keySources": [{"type": "secure-random"}],
			"producers": [],
			"consumer": {"storePath": "s.db", "hitSinkPath": "h.txt"}
		}
	}`
	_, err := Load(strings.NewReader(doc))
	if !errors.Is(err, ErrMissingKeySourceID) {
		t.Fatalf("got %v, want ErrMissingKeySourceID", err)
	}
}

func TestLoadRejectsUnknownCommand(t *testing.T) {
	_, err := Load(strings.NewReader(`{"command": "Bogus"}`))
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("got %v, want ErrUnknownCommand", err)
	}
}

func TestLoadBitMaskedRequiresInnerID(t *testing.T) {
	doc := `{
		"command": "Find",
		"find": {
			"keySources": [{"id": "m", "type": "bit-masked", "bits": 8}],
			"producers": [],
			"consumer": {"storePath": "s.db", "hitSinkPath": "h.txt"}
		}
	}`
	_, err := Load(strings.NewReader(doc))
	if !errors.Is(err, ErrBitMaskedMissingInner) {
		t.Fatalf("got %v, want ErrBitMaskedMissingInner", err)
	}
}
