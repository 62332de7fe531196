// Package enrich hosts the external data enrichment services.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const pincodeAPIURL = "https://api.postalpincode.in/pincode/%s"

// Place is a pincode lookup result. All fields are always present, empty on
// miss.
type Place struct {
	City     string `json:"city"`
	State    string `json:"state"`
	District string `json:"district"`
	Country  string `json:"country"`
}

// PincodeService resolves Indian pincodes to place data, cache first, then
// the India Post API. Misses still return Country "India".
type PincodeService struct {
	mu        sync.Mutex
	cache     map[string]Place
	cachePath string
	http      *http.Client
	logger    *slog.Logger
}

// NewPincodeService loads the optional JSON cache file and seeds common
// pincodes on top of it.
func NewPincodeService(cachePath string, timeout time.Duration, logger *slog.Logger) *PincodeService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &PincodeService{
		cache:     map[string]Place{},
		cachePath: cachePath,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
	s.loadCache()
	return s
}

func (s *PincodeService) loadCache() {
	if s.cachePath != "" {
		if data, err := os.ReadFile(s.cachePath); err == nil {
			if err := json.Unmarshal(data, &s.cache); err != nil {
				s.logger.Warn("enrich.pincode.cache_parse_error", "path", s.cachePath, "error", err)
				s.cache = map[string]Place{}
			}
		}
	}
	for pin, place := range pincodeSeed {
		s.cache[pin] = place
	}
}

func (s *PincodeService) saveCache() {
	if s.cachePath == "" {
		return
	}
	data, err := json.Marshal(s.cache)
	if err != nil {
		return
	}
	if err := os.WriteFile(s.cachePath, data, 0o644); err != nil {
		s.logger.Warn("enrich.pincode.cache_write_error", "path", s.cachePath, "error", err)
	}
}

// Lookup resolves a pincode. Network failures degrade to an empty Place with
// Country "India".
func (s *PincodeService) Lookup(ctx context.Context, pincode string) Place {
	pincode = strings.TrimSpace(pincode)

	s.mu.Lock()
	if hit, ok := s.cache[pincode]; ok {
		s.mu.Unlock()
		return hit
	}
	s.mu.Unlock()

	if place, ok := s.callAPI(ctx, pincode); ok {
		s.mu.Lock()
		s.cache[pincode] = place
		s.saveCache()
		s.mu.Unlock()
		return place
	}
	return Place{Country: "India"}
}

func (s *PincodeService) callAPI(ctx context.Context, pincode string) (Place, bool) {
	url := fmt.Sprintf(pincodeAPIURL, pincode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Place{}, false
	}
	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("enrich.pincode.api_error", "pincode", pincode, "error", err)
		return Place{}, false
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Warn("enrich.pincode.body_close_error", "error", cerr)
		}
	}()

	var payload []struct {
		Status     string `json:"Status"`
		PostOffice []struct {
			Name     string `json:"Name"`
			Block    string `json:"Block"`
			District string `json:"District"`
			State    string `json:"State"`
			Country  string `json:"Country"`
		} `json:"PostOffice"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		s.logger.Warn("enrich.pincode.decode_error", "pincode", pincode, "error", err)
		return Place{}, false
	}
	if len(payload) == 0 || payload[0].Status != "Success" || len(payload[0].PostOffice) == 0 {
		return Place{}, false
	}
	po := payload[0].PostOffice[0]
	city := po.Block
	if city == "" {
		city = po.Name
	}
	country := po.Country
	if country == "" {
		country = "India"
	}
	s.logger.Info("enrich.pincode.api_ok",
		"pincode", pincode,
		"state", po.State,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Place{City: city, State: po.State, District: po.District, Country: country}, true
}

// Seed data for common Indian pincodes.
var pincodeSeed = map[string]Place{
	"400001": {City: "Mumbai", State: "Maharashtra", District: "Mumbai", Country: "India"},
	"110001": {City: "New Delhi", State: "Delhi", District: "Central Delhi", Country: "India"},
	"560001": {City: "Bangalore", State: "Karnataka", District: "Bangalore", Country: "India"},
	"600001": {City: "Chennai", State: "Tamil Nadu", District: "Chennai", Country: "India"},
	"700001": {City: "Kolkata", State: "West Bengal", District: "Kolkata", Country: "India"},
	"500001": {City: "Hyderabad", State: "Telangana", District: "Hyderabad", Country: "India"},
	"380001": {City: "Ahmedabad", State: "Gujarat", District: "Ahmedabad", Country: "India"},
	"411001": {City: "Pune", State: "Maharashtra", District: "Pune", Country: "India"},
	"226001": {City: "Lucknow", State: "Uttar Pradesh", District: "Lucknow", Country: "India"},
	"302001": {City: "Jaipur", State: "Rajasthan", District: "Jaipur", Country: "India"},
	"440001": {City: "Nagpur", State: "Maharashtra", District: "Nagpur", Country: "India"},
	"560100": {City: "Bangalore", State: "Karnataka", District: "Bangalore Rural", Country: "India"},
	"400051": {City: "Mumbai", State: "Maharashtra", District: "Mumbai Suburban", Country: "India"},
	"110085": {City: "New Delhi", State: "Delhi", District: "North West Delhi", Country: "India"},
	"201301": {City: "Noida", State: "Uttar Pradesh", District: "Gautam Buddha Nagar", Country: "India"},
	"122001": {City: "Gurgaon", State: "Haryana", District: "Gurgaon", Country: "India"},
}
