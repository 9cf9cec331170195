package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Keyset is the position after which the next page starts. Lists are ordered by creation
// time and then by id, so the pair is unique and stable across inserts.
type Keyset struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// IsZero reports whether the keyset points at the start of the list.
func (k Keyset) IsZero() bool {
	return k.ID == "" && k.CreatedAt.IsZero()
}

// After reports whether an item with the given position sorts strictly after the keyset.
func (k Keyset) After(createdAt time.Time, id string) bool {
	if k.IsZero() {
		return true
	}
	if !createdAt.Equal(k.CreatedAt) {
		return createdAt.After(k.CreatedAt)
	}
	return id > k.ID
}

// EncodeToken serialises the keyset into a base64 URL-safe page token.
func EncodeToken(keyset Keyset) (string, error) {
	if keyset.IsZero() {
		return "", nil
	}
	keyset.CreatedAt = keyset.CreatedAt.UTC()
	data, err := json.Marshal(keyset)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses the page token produced by EncodeToken back into a keyset.
func DecodeToken(token string) (Keyset, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Keyset{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Keyset{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var keyset Keyset
	if err := json.Unmarshal(decoded, &keyset); err != nil {
		return Keyset{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if strings.TrimSpace(keyset.ID) == "" {
		return Keyset{}, fmt.Errorf("%w: missing id", ErrInvalidPageToken)
	}
	return keyset, nil
}
