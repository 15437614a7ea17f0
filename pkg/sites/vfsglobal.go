package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// VFSGlobalChecker queries the VFS Global calendar API for available
// appointment dates at the Turkish application centers.
type VFSGlobalChecker struct {
	client  *Client
	baseURL string
	centers map[string]string
	logger  *logger.Logger
}

func NewVFSGlobalChecker(client *Client) *VFSGlobalChecker {
	return &VFSGlobalChecker{
		client:  client,
		baseURL: "https://visa.vfsglobal.com",
		centers: map[string]string{
			"ank": "VFS Global Ankara",
			"ist": "VFS Global Istanbul",
		},
		logger: logger.New("vfsglobal"),
	}
}

func (v *VFSGlobalChecker) Name() string {
	return "vfsglobal"
}

func (v *VFSGlobalChecker) Check(ctx context.Context) ([]Appointment, error) {
	var appointments []Appointment

	for centerCode, centerName := range v.centers {
		params := url.Values{}
		params.Set("missionCode", "ita")
		params.Set("centerCode", centerCode)
		params.Set("categoryCode", "1")
		params.Set("languageCode", "tr")
		apiURL := fmt.Sprintf("%s/appointment/api/calendar/availableDates?%s", v.baseURL, params.Encode())

		headers := http.Header{}
		headers.Set("X-Requested-With", "XMLHttpRequest")

		var payload json.RawMessage
		if err := v.client.GetJSON(ctx, apiURL, "it", headers, &payload); err != nil {
			v.logger.WarnBg("Failed to fetch calendar for %s: %v", centerCode, err)
			continue
		}

		for _, date := range parseAvailableDates(payload) {
			appointments = append(appointments, Appointment{
				Location: centerName,
				Detail:   date,
			})
		}
	}

	if len(appointments) > 0 {
		v.logger.InfoBg("Found %d available dates", len(appointments))
	}
	return appointments, nil
}

// parseAvailableDates handles both calendar API response shapes: a list of
// per-day objects with an available flag, or an object carrying an
// availableDates array.
func parseAvailableDates(payload json.RawMessage) []string {
	var days []struct {
		Date      string `json:"date"`
		Available bool   `json:"available"`
	}
	if err := json.Unmarshal(payload, &days); err == nil {
		var dates []string
		for _, day := range days {
			if day.Available && day.Date != "" {
				dates = append(dates, day.Date)
			}
		}
		return dates
	}

	var wrapper struct {
		AvailableDates []string `json:"availableDates"`
	}
	if err := json.Unmarshal(payload, &wrapper); err == nil {
		return wrapper.AvailableDates
	}

	return nil
}
