package enrich

import (
	"fmt"
	"regexp"
	"strings"
)

// Indian GST state codes.
var stateCodes = map[string]string{
	"01": "Jammu & Kashmir", "02": "Himachal Pradesh", "03": "Punjab",
	"04": "Chandigarh", "05": "Uttarakhand", "06": "Haryana",
	"07": "Delhi", "08": "Rajasthan", "09": "Uttar Pradesh",
	"10": "Bihar", "11": "Sikkim", "12": "Arunachal Pradesh",
	"13": "Nagaland", "14": "Manipur", "15": "Mizoram",
	"16": "Tripura", "17": "Meghalaya", "18": "Assam",
	"19": "West Bengal", "20": "Jharkhand", "21": "Odisha",
	"22": "Chhattisgarh", "23": "Madhya Pradesh", "24": "Gujarat",
	"25": "Daman & Diu", "26": "Dadra & Nagar Haveli", "27": "Maharashtra",
	"28": "Andhra Pradesh", "29": "Karnataka", "30": "Goa",
	"31": "Lakshadweep", "32": "Kerala", "33": "Tamil Nadu",
	"34": "Puducherry", "35": "Andaman & Nicobar", "36": "Telangana",
	"37": "Andhra Pradesh (New)", "38": "Ladakh",
}

var entityTypes = map[string]string{
	"1": "Proprietorship",
	"2": "Partnership",
	"3": "Company",
	"4": "LLP",
	"5": "Trust",
	"6": "Government",
	"7": "Local Authority",
	"8": "HUF",
	"9": "AOP/BOI",
}

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z]{1}[A-Z0-9]{1}Z[A-Z0-9]{1}$`)

// GSTINInfo is the outcome of a GSTIN validation.
type GSTINInfo struct {
	IsValid    bool   `json:"is_valid"`
	StateCode  string `json:"state_code"`
	StateName  string `json:"state_name"`
	PAN        string `json:"pan"`
	EntityType string `json:"entity_type"`
	Error      string `json:"error"`
}

// ValidateGSTIN checks the 15-character GSTIN format and resolves the state
// name and entity type encoded in it.
func ValidateGSTIN(gstin string) GSTINInfo {
	gstin = strings.ToUpper(strings.TrimSpace(gstin))
	if gstin == "" {
		return GSTINInfo{Error: "Empty GSTIN"}
	}
	if len(gstin) != 15 {
		return GSTINInfo{Error: fmt.Sprintf("Invalid length: %d (expected 15)", len(gstin))}
	}
	if !gstinPattern.MatchString(gstin) {
		return GSTINInfo{Error: "Invalid format"}
	}
	stateCode := gstin[:2]
	name, ok := stateCodes[stateCode]
	if !ok {
		return GSTINInfo{Error: fmt.Sprintf("Invalid state code: %s", stateCode)}
	}
	entity, ok := entityTypes[string(gstin[12])]
	if !ok {
		entity = "Unknown"
	}
	return GSTINInfo{
		IsValid:    true,
		StateCode:  stateCode,
		StateName:  name,
		PAN:        gstin[2:12],
		EntityType: entity,
	}
}
