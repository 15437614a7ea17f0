package sites

import (
	"context"
	"fmt"
	"time"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// USVisaChecker polls the ustraveldocs.com appointment-days JSON feed for
// the Turkish consulate locations.
type USVisaChecker struct {
	client  *Client
	baseURL string
	// ustraveldocs location IDs for the schedule endpoint
	locations map[string]int
	names     map[string]string
	logger    *logger.Logger
}

func NewUSVisaChecker(client *Client) *USVisaChecker {
	return &USVisaChecker{
		client:  client,
		baseURL: "https://www.ustraveldocs.com",
		locations: map[string]int{
			"ankara":   122,
			"istanbul": 124,
		},
		names: map[string]string{
			"ankara":   "US Embassy Ankara",
			"istanbul": "US Consulate Istanbul",
		},
		logger: logger.New("usvisa"),
	}
}

func (u *USVisaChecker) Name() string {
	return "usvisa"
}

// Check queries each location's available-days feed. Only dates within the
// next six months count as actionable.
func (u *USVisaChecker) Check(ctx context.Context) ([]Appointment, error) {
	var appointments []Appointment
	horizon := time.Now().AddDate(0, 6, 0)

	for city, locationID := range u.locations {
		feedURL := fmt.Sprintf("%s/tr/niv/schedule/%d/appointment/days/95.json", u.baseURL, locationID)

		var days []struct {
			Date string `json:"date"`
		}
		if err := u.client.GetJSON(ctx, feedURL, "tr", nil, &days); err != nil {
			u.logger.WarnBg("Failed to fetch %s schedule: %v", city, err)
			continue
		}

		for _, day := range days {
			if day.Date == "" {
				continue
			}
			date, err := time.Parse("2006-01-02", day.Date)
			if err != nil {
				continue
			}
			if date.After(horizon) {
				continue
			}
			appointments = append(appointments, Appointment{
				Location: u.names[city],
				Detail:   day.Date,
			})
		}
	}

	if len(appointments) > 0 {
		u.logger.InfoBg("Found %d available appointment days", len(appointments))
	}
	return appointments, nil
}
