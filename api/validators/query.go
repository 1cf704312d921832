package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
)

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParseTelegramID reads a required positive Telegram id from the query string.
func ParseTelegramID(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required").WithDetails(map[string]any{"field": key})
	}
	return parseTelegramID(raw, key)
}

// ParsePathTelegramID parses a Telegram id taken from a URL segment.
func ParsePathTelegramID(raw string) (int64, error) {
	return parseTelegramID(strings.TrimSpace(raw), "telegramID")
}

func parseTelegramID(raw, field string) (int64, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "telegram id must be a positive integer").WithDetails(map[string]any{"field": field})
	}
	return value, nil
}
