// Package translator resolves one translation unit's entry set into
// its localized form: dictionary match first, then batched LLM calls
// for the misses, with untranslated pass-through as the final fallback.
package translator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/zack-zzq/modpack-localizer/internal/dictionary"
	"github.com/zack-zzq/modpack-localizer/internal/lang"
	"github.com/zack-zzq/modpack-localizer/pkg/log"
)

// LLMClient is the external LLM collaborator contract.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Config controls unit translation behavior.
type Config struct {
	// TargetLang is the Minecraft language code, e.g. "zh_cn".
	TargetLang string
	// LLMEnabled gates the LLM fallback; when false, dictionary misses
	// pass through untranslated and are flagged.
	LLMEnabled bool
	BatchSize  int
	MaxRetries int
	// Timeout bounds each individual LLM call.
	Timeout time.Duration
	// RetryDelay is the base backoff between attempts.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Result is the outcome of translating one unit.
type Result struct {
	// Entries holds the full merged entry set: every input key is
	// present, translated or passed through.
	Entries lang.Entries
	// DictHits counts entries resolved by the dictionary.
	DictHits int
	// LLMTranslated counts entries resolved by the LLM.
	LLMTranslated int
	// AlreadyLocalized counts entries detected as already being in the
	// target script.
	AlreadyLocalized int
	// PassedThrough lists keys left in the source language.
	PassedThrough []string
}

// UnitTranslator translates independent entry sets. Safe for
// concurrent use across units: it holds no per-unit state.
type UnitTranslator struct {
	dict         *dictionary.Dictionary
	client       LLMClient
	cfg          Config
	targetScript *unicode.RangeTable
}

// New creates a unit translator. client may be nil when the LLM
// fallback is disabled.
func New(dict *dictionary.Dictionary, client LLMClient, cfg Config) *UnitTranslator {
	return &UnitTranslator{
		dict:         dict,
		client:       client,
		cfg:          cfg.withDefaults(),
		targetScript: scriptForLang(cfg.TargetLang),
	}
}

// scriptForLang maps a Minecraft language code to the unicode script
// used to recognize already-localized text. Unknown languages disable
// the check.
func scriptForLang(code string) *unicode.RangeTable {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return nil
	}
	base, _ := tag.Base()
	switch base.String() {
	case "zh":
		return unicode.Han
	case "ja":
		return unicode.Hiragana
	case "ko":
		return unicode.Hangul
	case "ru", "uk":
		return unicode.Cyrillic
	default:
		return nil
	}
}

// TranslateUnit resolves every entry of one unit. A returned error
// means the LLM fallback exhausted its retries; dictionary results are
// never a source of failure.
func (t *UnitTranslator) TranslateUnit(ctx context.Context, entries lang.Entries) (*Result, error) {
	result := &Result{Entries: make(lang.Entries, len(entries))}
	remaining := make(lang.Entries)

	for key, value := range entries {
		switch {
		case strings.TrimSpace(value) == "":
			result.Entries[key] = value
		case t.lookupDict(value, key, result):
		case t.alreadyLocalized(value):
			result.Entries[key] = value
			result.AlreadyLocalized++
		default:
			remaining[key] = value
		}
	}

	if len(remaining) > 0 {
		if t.cfg.LLMEnabled && t.client != nil {
			translated, err := t.translateBatches(ctx, remaining)
			if err != nil {
				return nil, err
			}
			for key, value := range remaining {
				if tr, ok := translated[key]; ok && tr != "" {
					result.Entries[key] = tr
					result.LLMTranslated++
				} else {
					result.Entries[key] = value
					result.PassedThrough = append(result.PassedThrough, key)
				}
			}
		} else {
			for key, value := range remaining {
				result.Entries[key] = value
				result.PassedThrough = append(result.PassedThrough, key)
			}
		}
	}

	sort.Strings(result.PassedThrough)
	return result, nil
}

func (t *UnitTranslator) lookupDict(value, key string, result *Result) bool {
	translated, ok := t.dict.Lookup(value)
	if !ok {
		return false
	}
	result.Entries[key] = translated
	result.DictHits++
	return true
}

// alreadyLocalized reports whether the text is dominated by the target
// language's script, meaning the pack author localized it themselves.
func (t *UnitTranslator) alreadyLocalized(text string) bool {
	if t.targetScript == nil {
		return false
	}
	return whatlanggo.DetectScript(text) == t.targetScript
}

// translateBatches splits the entries into batches of BatchSize and
// translates each. Batch order is the sorted key order so logs and
// retries are deterministic.
func (t *UnitTranslator) translateBatches(ctx context.Context, entries lang.Entries) (map[string]string, error) {
	keys := entries.Keys()
	translated := make(map[string]string, len(entries))

	totalBatches := (len(keys) + t.cfg.BatchSize - 1) / t.cfg.BatchSize
	for i := 0; i < len(keys); i += t.cfg.BatchSize {
		end := min(i+t.cfg.BatchSize, len(keys))
		batch := make(lang.Entries, end-i)
		for _, key := range keys[i:end] {
			batch[key] = entries[key]
		}

		log.Info("LLM translating batch %d/%d (%d entries)", i/t.cfg.BatchSize+1, totalBatches, len(batch))
		partial, err := t.translateBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for key, value := range partial {
			translated[key] = value
		}
	}
	return translated, nil
}

// translateBatch translates one batch with bounded retries. When the
// whole batch keeps failing it is split in half and each half retried,
// isolating a single poisonous entry instead of losing the batch.
func (t *UnitTranslator) translateBatch(ctx context.Context, batch lang.Entries) (map[string]string, error) {
	var lastErr error
	for attempt := 0; attempt < t.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := t.sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		partial, err := t.callLLM(ctx, batch)
		if err == nil {
			return partial, nil
		}
		lastErr = err
		log.Warn("LLM batch attempt %d/%d failed: %v", attempt+1, t.cfg.MaxRetries, err)
	}

	if len(batch) > 1 {
		log.Warn("Retrying failed batch of %d entries in halves", len(batch))
		keys := batch.Keys()
		half := len(keys) / 2
		first, second := make(lang.Entries), make(lang.Entries)
		for i, key := range keys {
			if i < half {
				first[key] = batch[key]
			} else {
				second[key] = batch[key]
			}
		}

		merged, err := t.translateBatch(ctx, first)
		if err != nil {
			return nil, err
		}
		rest, err := t.translateBatch(ctx, second)
		if err != nil {
			return nil, err
		}
		for key, value := range rest {
			merged[key] = value
		}
		return merged, nil
	}

	return nil, fmt.Errorf("LLM translation exhausted %d retries: %w", t.cfg.MaxRetries, lastErr)
}

func (t *UnitTranslator) sleepBackoff(ctx context.Context, attempt int) error {
	delay := t.cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// callLLM performs one bounded LLM call for a batch and parses the
// JSON-object response.
func (t *UnitTranslator) callLLM(ctx context.Context, batch lang.Entries) (map[string]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	payload, err := batch.Marshal()
	if err != nil {
		return nil, err
	}

	content, err := t.client.Complete(callCtx, t.systemPrompt(batch), string(payload))
	if err != nil {
		return nil, err
	}

	return parseResponse(content)
}

// parseResponse extracts the translated JSON object from the model
// output, tolerating markdown code fences.
func parseResponse(content string) (map[string]string, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		lines = lines[1:]
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
			lines = lines[:len(lines)-1]
		}
		content = strings.Join(lines, "\n")
	}

	parsed, err := lang.Unmarshal([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	return parsed, nil
}
