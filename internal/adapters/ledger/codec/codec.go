// Package codec maps ledger snapshots to and from their stored documents.
//
// Identities are stringified on encode and parsed back with
// domain.ParseIdentity on decode, for every key without exception.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/gptmeter/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

var legacyDateLayouts = []string{domain.TimestampLayout, "02-01-2006 15:04:05"}

// FormatForPath picks the document format from the file extension. Anything
// other than .toml is JSON.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}

	return FormatJSON
}

func Encode(format Format, snapshot domain.Snapshot) ([]byte, error) {
	doc := toSchema(snapshot)

	switch format {
	case FormatTOML:
		data, err := toml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode ledger toml: %w", err)
		}
		return data, nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(doc, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("encode ledger json: %w", err)
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported ledger format %q", format)
	}
}

// Decode parses a stored document. Every failure wraps domain.ErrCorruptLedger.
func Decode(format Format, data []byte) (domain.Snapshot, error) {
	snapshot, err := decode(format, data)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: %w", domain.ErrCorruptLedger, err)
	}

	return snapshot, nil
}

func decode(format Format, data []byte) (domain.Snapshot, error) {
	var doc documentSchema

	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode ledger toml: %w", err)
		}
	case FormatJSON, "":
		legacy, err := isLegacyJSON(data)
		if err != nil {
			return domain.Snapshot{}, err
		}
		if legacy {
			return decodeLegacyJSON(data)
		}

		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode ledger json: %w", err)
		}
	default:
		return domain.Snapshot{}, fmt.Errorf("unsupported ledger format %q", format)
	}

	if err := doc.validateVersion(); err != nil {
		return domain.Snapshot{}, err
	}
	doc.applyDefaults()

	return fromSchema(doc)
}

func isLegacyJSON(data []byte) (bool, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return false, fmt.Errorf("decode ledger json: %w", err)
	}
	if top == nil {
		return false, fmt.Errorf("decode ledger json: document is null")
	}

	_, hasGlobal := top[legacyGlobalKey]
	_, hasVersion := top["version"]

	return hasGlobal && !hasVersion, nil
}

func decodeLegacyJSON(data []byte) (domain.Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode legacy ledger: %w", err)
	}

	var global legacyGlobalSchema
	if err := json.Unmarshal(top[legacyGlobalKey], &global); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode legacy aggregate: %w", err)
	}
	if global.Requests < 0 || global.Tokens < 0 {
		return domain.Snapshot{}, fmt.Errorf("legacy aggregate has negative counters")
	}

	snapshot := domain.Snapshot{
		Aggregate: domain.AggregateRecord{TotalRequests: global.Requests, TotalUnits: global.Tokens},
		Accounts:  make(map[domain.Identity]domain.AccountRecord, len(top)),
	}

	for key, raw := range top {
		if key == legacyGlobalKey {
			continue
		}

		id, err := domain.ParseIdentity(key)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("legacy account key: %w", err)
		}

		var entry legacyAccountSchema
		if err := json.Unmarshal(raw, &entry); err != nil {
			return domain.Snapshot{}, fmt.Errorf("decode legacy account %s: %w", key, err)
		}
		if entry.Requests < 0 || entry.Tokens < 0 {
			return domain.Snapshot{}, fmt.Errorf("legacy account %s has negative counters", key)
		}

		lastActivity, err := parseLegacyDate(entry.LastDate)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("legacy account %s: %w", key, err)
		}

		account := domain.AccountRecord{
			ID:            id,
			RequestCount:  entry.Requests,
			UnitsConsumed: entry.Tokens,
			Balance:       entry.Balance,
			DisplayName:   legacyString(entry.Name),
			Handle:        strings.TrimPrefix(legacyString(entry.Username), "@"),
			LastActivity:  lastActivity,
		}
		if entry.Prompt != nil {
			account.SystemDirective = *entry.Prompt
		}

		snapshot.Accounts[id] = account
	}

	return snapshot, nil
}

func legacyString(value string) string {
	if value == legacyPlaceholder {
		return ""
	}

	return value
}

func parseLegacyDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	for _, layout := range legacyDateLayouts {
		parsed, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized legacy date %q", raw)
}

func toSchema(snapshot domain.Snapshot) documentSchema {
	doc := documentSchema{
		Version: currentSchemaVersion,
		Aggregate: aggregateSchema{
			TotalRequests: snapshot.Aggregate.TotalRequests,
			TotalUnits:    snapshot.Aggregate.TotalUnits,
		},
		Accounts: make(map[string]accountSchema, len(snapshot.Accounts)),
	}

	for id, account := range snapshot.Accounts {
		doc.Accounts[id.String()] = accountSchema{
			RequestCount:    account.RequestCount,
			UnitsConsumed:   account.UnitsConsumed,
			Balance:         account.Balance,
			DisplayName:     account.DisplayName,
			Handle:          account.Handle,
			LastActivity:    formatTime(account.LastActivity),
			SystemDirective: account.SystemDirective,
		}
	}

	return doc
}

func fromSchema(doc documentSchema) (domain.Snapshot, error) {
	if doc.Aggregate.TotalRequests < 0 || doc.Aggregate.TotalUnits < 0 {
		return domain.Snapshot{}, fmt.Errorf("aggregate has negative counters")
	}

	snapshot := domain.Snapshot{
		Aggregate: domain.AggregateRecord{
			TotalRequests: doc.Aggregate.TotalRequests,
			TotalUnits:    doc.Aggregate.TotalUnits,
		},
		Accounts: make(map[domain.Identity]domain.AccountRecord, len(doc.Accounts)),
	}

	for key, entry := range doc.Accounts {
		id, err := domain.ParseIdentity(key)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("account key: %w", err)
		}
		if entry.RequestCount < 0 || entry.UnitsConsumed < 0 {
			return domain.Snapshot{}, fmt.Errorf("account %s has negative counters", key)
		}

		lastActivity, err := parseTime(entry.LastActivity)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("account %s: %w", key, err)
		}

		snapshot.Accounts[id] = domain.AccountRecord{
			ID:              id,
			RequestCount:    entry.RequestCount,
			UnitsConsumed:   entry.UnitsConsumed,
			Balance:         entry.Balance,
			DisplayName:     entry.DisplayName,
			Handle:          entry.Handle,
			LastActivity:    lastActivity,
			SystemDirective: entry.SystemDirective,
		}
	}

	return snapshot, nil
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(domain.TimestampLayout)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	parsed, err := time.ParseInLocation(domain.TimestampLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last activity %q: %w", raw, err)
	}

	return parsed, nil
}
