package services

import (
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/hanko-field/commerce/internal/platform/textutil"
)

const maxShippingFieldLength = 200

var (
	errShippingAddressRequired = errors.New("shipping address is required")
	errShippingCityRequired    = errors.New("shipping city is required")
	errShippingCountryRequired = errors.New("shipping country is required")
	errShippingFieldTooLong    = errors.New("shipping field exceeds 200 characters")
	errShippingPhoneInvalid    = errors.New("shipping phone number is invalid")

	shippingPhonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{4,19}$`)
)

// sanitizeShippingInfo strips markup, normalises Unicode and canonicalises country codes.
// Free-text country names are kept as written.
func sanitizeShippingInfo(info ShippingInfo) (ShippingInfo, error) {
	sanitized := ShippingInfo{
		Address:     textutil.CleanText(info.Address),
		City:        textutil.CleanText(info.City),
		Country:     textutil.CleanText(info.Country),
		PostCode:    textutil.CleanText(info.PostCode),
		PhoneNumber: textutil.CleanText(info.PhoneNumber),
	}

	if sanitized.Address == "" {
		return ShippingInfo{}, errShippingAddressRequired
	}
	if sanitized.City == "" {
		return ShippingInfo{}, errShippingCityRequired
	}
	if sanitized.Country == "" {
		return ShippingInfo{}, errShippingCountryRequired
	}
	for _, field := range []string{sanitized.Address, sanitized.City, sanitized.Country, sanitized.PostCode} {
		if utf8.RuneCountInString(field) > maxShippingFieldLength {
			return ShippingInfo{}, errShippingFieldTooLong
		}
	}
	if code, ok := textutil.CanonicalRegion(sanitized.Country); ok {
		sanitized.Country = code
	}
	if sanitized.PhoneNumber != "" && !shippingPhonePattern.MatchString(sanitized.PhoneNumber) {
		return ShippingInfo{}, errShippingPhoneInvalid
	}
	return sanitized, nil
}
