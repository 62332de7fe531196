package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z]{1}[A-Z0-9]{1}Z[A-Z0-9]{1}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
)

// validateGSTIN checks an Indian GSTIN and extracts the embedded state code
// and PAN.
//
// GSTIN format 22AAAAA0000A1Z5: positions 1-2 state code, 3-12 PAN,
// 13 entity number, 14 'Z', 15 checksum.
func validateGSTIN(args Args) (Result, error) {
	order := []string{"is_valid", "state_code", "pan", "error"}
	result := map[string]any{"is_valid": false, "state_code": "", "pan": "", "error": ""}
	if isMissing(args.Value) {
		result["error"] = "Empty value"
		return Record(result, order...), nil
	}
	gstin := strings.ToUpper(strings.TrimSpace(cellString(args.Value)))
	if len(gstin) != 15 {
		result["error"] = fmt.Sprintf("Invalid length: %d (expected 15)", len(gstin))
		return Record(result, order...), nil
	}
	if !gstinPattern.MatchString(gstin) {
		result["error"] = "Invalid format"
		return Record(result, order...), nil
	}
	result["is_valid"] = true
	result["state_code"] = gstin[:2]
	result["pan"] = gstin[2:12]
	return Record(result, order...), nil
}

// validateEmail checks email format and returns the lower-cased normal form.
func validateEmail(args Args) (Result, error) {
	order := []string{"is_valid", "normalized", "error"}
	result := map[string]any{"is_valid": false, "normalized": "", "error": ""}
	if isMissing(args.Value) {
		result["error"] = "Empty value"
		return Record(result, order...), nil
	}
	email := strings.ToLower(strings.TrimSpace(cellString(args.Value)))
	if emailPattern.MatchString(email) {
		result["is_valid"] = true
		result["normalized"] = email
	} else {
		result["error"] = "Invalid email format"
	}
	return Record(result, order...), nil
}

// normalizePhone formats a phone number for the configured region. Invalid or
// unparseable numbers pass through unchanged.
//
// Params:
//
//	region: ISO country code (default "IN")
//	format: "E.164", "NATIONAL" or "INTERNATIONAL"
func normalizePhone(args Args) (Result, error) {
	if isMissing(args.Value) {
		return Scalar(""), nil
	}
	phone := strings.TrimSpace(cellString(args.Value))
	if phone == "" {
		return Scalar(""), nil
	}
	region := paramString(args.Params, "region", "IN")
	outputFormat := paramString(args.Params, "format", "E.164")

	parsed, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return Scalar(phone), nil
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return Scalar(phone), nil
	}
	switch outputFormat {
	case "NATIONAL":
		return Scalar(phonenumbers.Format(parsed, phonenumbers.NATIONAL)), nil
	case "INTERNATIONAL":
		return Scalar(phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)), nil
	default:
		return Scalar(phonenumbers.Format(parsed, phonenumbers.E164)), nil
	}
}

// Seed data for common Indian pincodes; the enrichment service answers the
// long tail.
var pincodeSeed = map[string]map[string]any{
	"400001": {"city": "Mumbai", "state": "Maharashtra", "country": "India"},
	"110001": {"city": "New Delhi", "state": "Delhi", "country": "India"},
	"560001": {"city": "Bangalore", "state": "Karnataka", "country": "India"},
	"600001": {"city": "Chennai", "state": "Tamil Nadu", "country": "India"},
	"700001": {"city": "Kolkata", "state": "West Bengal", "country": "India"},
	"500001": {"city": "Hyderabad", "state": "Telangana", "country": "India"},
	"380001": {"city": "Ahmedabad", "state": "Gujarat", "country": "India"},
	"411001": {"city": "Pune", "state": "Maharashtra", "country": "India"},
}

// lookupPincode resolves city/state/country from an Indian pincode. Unknown
// pincodes still return all three keys.
func lookupPincode(args Args) (Result, error) {
	order := []string{"city", "state", "country"}
	if isMissing(args.Value) {
		return Record(map[string]any{"city": "", "state": "", "country": ""}, order...), nil
	}
	pincode := strings.TrimSpace(cellString(args.Value))
	if hit, ok := pincodeSeed[pincode]; ok {
		out := make(map[string]any, len(hit))
		for k, v := range hit {
			out[k] = v
		}
		return Record(out, order...), nil
	}
	return Record(map[string]any{"city": "", "state": "", "country": "India"}, order...), nil
}
