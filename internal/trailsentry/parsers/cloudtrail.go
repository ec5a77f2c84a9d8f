package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/classify"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
)

// ErrSkipRecord indicates the record couldn't be normalized but the batch
// should continue.
var ErrSkipRecord = errors.New("skip record")

// Parser converts raw CloudTrail records into canonical Events.
type Parser struct {
	table *classify.Table
}

func NewParser(table *classify.Table) *Parser {
	if table == nil {
		table = classify.NewTable()
	}
	return &Parser{table: table}
}

// Result is the outcome of normalizing one batch of raw records.
type Result struct {
	Events  []Event
	Parsed  int
	Dropped int
}

// Parse normalizes a CloudTrail JSON document. Accepted shapes are the
// standard {"Records":[...]} envelope or a bare array of records.
// Malformed records are dropped and counted; only an unusable document
// shape is an error. Events come back chronologically sorted (stable),
// which keeps each principal's events in time order for downstream
// consecutive-failure detection.
func (p *Parser) Parse(data []byte) (*Result, error) {
	records, err := splitRecords(data)
	if err != nil {
		return nil, err
	}

	res := &Result{Events: make([]Event, 0, len(records))}
	for _, raw := range records {
		evt, err := p.ParseRecord(raw)
		if err != nil {
			res.Dropped++
			logger.L().Debugw("dropping record", "err", err.Error())
			continue
		}
		res.Parsed++
		res.Events = append(res.Events, *evt)
	}

	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Timestamp.Before(res.Events[j].Timestamp)
	})
	return res, nil
}

// ParseRecord normalizes a single raw record. Shape errors are contained to
// the record: every failure path returns an error wrapping ErrSkipRecord.
func (p *Parser) ParseRecord(raw json.RawMessage) (*Event, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrSkipRecord, err)
	}

	action := getString(obj, "eventName")
	if action == "" {
		return nil, fmt.Errorf("%w: missing eventName", ErrSkipRecord)
	}

	principal := extractPrincipal(obj)
	if principal == "" {
		return nil, fmt.Errorf("%w: missing principal identity", ErrSkipRecord)
	}

	tsRaw := getString(obj, "eventTime")
	if tsRaw == "" {
		return nil, fmt.Errorf("%w: missing eventTime", ErrSkipRecord)
	}
	ts, err := dateparse.ParseAny(tsRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse eventTime %q: %v", ErrSkipRecord, tsRaw, err)
	}

	eventID := getString(obj, "eventID")
	if eventID == "" {
		eventID = uuid.NewString()
	}

	var errCode *string
	if ec := getString(obj, "errorCode"); ec != "" {
		errCode = &ec
	}

	return &Event{
		EventID:   eventID,
		Timestamp: ts.UTC(),
		Principal: principal,
		Action:    action,
		SourceIP:  getString(obj, "sourceIPAddress"),
		Region:    getString(obj, "awsRegion"),
		ErrorCode: errCode,
		MFAUsed:   extractMFA(obj),
		Tier:      p.table.Lookup(action),
	}, nil
}

func splitRecords(data []byte) ([]json.RawMessage, error) {
	var envelope struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Records != nil {
		return envelope.Records, nil
	}
	var bare []json.RawMessage
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}
	return nil, errors.New("unsupported CloudTrail log format: want {\"Records\":[...]} or a record array")
}

// extractPrincipal pulls userIdentity.arn, falling back to principalId.
func extractPrincipal(obj map[string]interface{}) string {
	identity := getMap(obj, "userIdentity")
	if identity == nil {
		return ""
	}
	if arn := getString(identity, "arn"); arn != "" {
		return arn
	}
	return getString(identity, "principalId")
}

// extractMFA checks the fields CloudTrail uses to signal MFA on the
// authenticating context. Console events carry additionalEventData.MFAUsed;
// role sessions carry sessionContext.attributes.mfaAuthenticated.
func extractMFA(obj map[string]interface{}) bool {
	if extra := getMap(obj, "additionalEventData"); extra != nil {
		if truthy(extra["MFAUsed"]) || truthy(extra["mfaAuthenticated"]) {
			return true
		}
	}
	identity := getMap(obj, "userIdentity")
	if identity == nil {
		return false
	}
	sessionCtx := getMap(identity, "sessionContext")
	if sessionCtx == nil {
		return false
	}
	attrs := getMap(sessionCtx, "attributes")
	if attrs == nil {
		return false
	}
	return truthy(attrs["mfaAuthenticated"])
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true
		}
	}
	return false
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func getMap(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key]; ok {
		if mm, ok := v.(map[string]interface{}); ok {
			return mm
		}
	}
	return nil
}
