package gqlrequest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the document, operation name and variables of one GraphQL request.
type Envelope struct {
	Query         string
	OperationName string
	Variables     map[string]interface{}

	DocumentSizeBytes int
}

// NewEnvelope normalizes request fields into an envelope.
func NewEnvelope(query, operationName string, variables map[string]interface{}) Envelope {
	return Envelope{
		Query:             query,
		OperationName:     strings.TrimSpace(operationName),
		Variables:         variables,
		DocumentSizeBytes: len(query),
	}
}

// DecodeVariables parses a JSON object of operation variables. Empty input and a
// literal null yield nil.
func DecodeVariables(raw []byte) (map[string]interface{}, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var vars map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &vars); err != nil {
		return nil, fmt.Errorf("variables must be a JSON object: %w", err)
	}
	return vars, nil
}
