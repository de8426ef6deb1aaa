package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// IdempotencyKeyHeader carries a client supplied key for refunds. It is
// forwarded to Klarna so retried requests do not refund twice.
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

// ParseIdempotencyKey extracts the key from an Idempotency-Key header.
// Format: a structured field string item (RFC 8941), e.g.
//
//	Idempotency-Key: "8e03978e-40d5-43e8-bc93-6894a57f9324"
//
// Parameters are ignored. An empty header yields an empty key.
func ParseIdempotencyKey(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}

	item, err := httpsfv.UnmarshalItem([]string{header})
	if err != nil {
		return "", fmt.Errorf("invalid Idempotency-Key header: %w", err)
	}

	key, ok := item.Value.(string)
	if !ok {
		return "", errors.New("Idempotency-Key value must be a string")
	}
	if key == "" || len(key) > maxIdempotencyKeyLength {
		return "", fmt.Errorf("Idempotency-Key must be 1 to %d characters", maxIdempotencyKeyLength)
	}
	return key, nil
}
