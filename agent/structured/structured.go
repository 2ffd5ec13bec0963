// Package structured turns the free-text completer into a source of
// schema-valid objects. Every call site declares the shape it expects;
// malformed output is repaired with bounded retries and finally
// replaced by a caller-supplied fallback, never surfaced as a hard
// failure.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/merryway/baristabot/agent/contract"
)

// MaxAttempts bounds the number of completer calls per logical
// request, repair retries included.
const MaxAttempts = 3

// Schema declares the expected object shape. Required keys must be
// present at the top level; Enums constrains string fields to a closed
// value set (compared case-insensitively after trimming). Check, when
// set, runs last and can reject shapes the flat declarations cannot
// express, such as enums nested inside arrays.
type Schema struct {
	Required []string
	Enums    map[string][]string
	Check    func(fields map[string]json.RawMessage) error
}

// Request runs the repair protocol: complete, extract the first
// balanced JSON object, decode into T and validate against the schema.
// Each failed attempt appends a correction message naming the failure
// before re-invoking the completer. After MaxAttempts the fallback is
// returned together with ErrRepairExhausted; the caller decides how to
// degrade. Retries are strictly sequential and never touch the
// canonical conversation log.
func Request[T any](
	ctx context.Context,
	completer contractx.Completer,
	messages []contractx.Message,
	schema Schema,
	fallback T,
) (T, error) {
	conv := append([]contractx.Message(nil), messages...)

	var lastErr error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			conv = append(conv, contractx.SystemMessage(correctionPrompt(attempt, lastErr)))
			log.Debug().Int("attempt", attempt).Err(lastErr).Msg("structured output repair retry")
		}

		raw, err := completer.Complete(ctx, conv)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
			continue
		}

		out, err := decode[T](raw, schema)
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}

	return fallback, fmt.Errorf("%w: last failure: %v", contractx.ErrRepairExhausted, lastErr)
}

func decode[T any](raw string, schema Schema) (T, error) {
	var zero T

	span, ok := FirstJSONObject(raw)
	if !ok {
		return zero, fmt.Errorf("%w: no JSON object in response", contractx.ErrSchemaViolation)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return zero, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}

	for _, key := range schema.Required {
		if _, present := fields[key]; !present {
			return zero, fmt.Errorf("%w: missing required key %q", contractx.ErrSchemaViolation, key)
		}
	}

	for field, allowed := range schema.Enums {
		rawValue, present := fields[field]
		if !present {
			continue
		}
		var value string
		if err := json.Unmarshal(rawValue, &value); err != nil {
			return zero, fmt.Errorf("%w: field %q must be a string", contractx.ErrSchemaViolation, field)
		}
		if !enumContains(allowed, value) {
			return zero, fmt.Errorf("%w: field %q has value %q outside %v", contractx.ErrSchemaViolation, field, value, allowed)
		}
	}

	if schema.Check != nil {
		if err := schema.Check(fields); err != nil {
			return zero, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
		}
	}

	var out T
	if err := json.Unmarshal([]byte(span), &out); err != nil {
		return zero, fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return out, nil
}

func enumContains(allowed []string, value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if value == strings.ToLower(strings.TrimSpace(candidate)) {
			return true
		}
	}
	return false
}

func correctionPrompt(attempt int, lastErr error) string {
	reason := "the response was not valid JSON"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return fmt.Sprintf(
		"RETRY ATTEMPT %d/%d: your previous response was rejected (%s). "+
			"Return ONLY a single valid JSON object. No markdown fences, "+
			"no text before or after the JSON, all keys double quoted.",
		attempt, MaxAttempts, reason,
	)
}
