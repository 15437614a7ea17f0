package sites

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cagr1tekin/MyVisa-Bot/internal/logger"
)

// Phrases that indicate a live booking system on the page.
var bookingPhrases = []string{
	"book an appointment",
	"schedule appointment",
	"make an appointment",
	"appointment booking",
	"visa application centre",
	"biometric appointment",
	"randevu al",
	"randevu oluştur",
}

var appointmentLinkPattern = regexp.MustCompile(`(?i)appointment|booking|schedule`)
var irccPattern = regexp.MustCompile(`(?i)ircc|immigration.*canada`)

// CanadaVisaChecker scans the Canadian VAC pages for signs of an open
// booking system. The pages carry no structured availability feed, so the
// check is a text-level heuristic over the rendered HTML.
type CanadaVisaChecker struct {
	client    *Client
	locations map[string]Location
	logger    *logger.Logger
}

func NewCanadaVisaChecker(client *Client) *CanadaVisaChecker {
	return &CanadaVisaChecker{
		client: client,
		locations: map[string]Location{
			"ankara": {
				URL:  "https://visa.vfsglobal.com/tur/en/can/attend-centre/ankara",
				Name: "Canada VAC Ankara",
			},
			"istanbul": {
				URL:  "https://visa.vfsglobal.com/tur/en/can/attend-centre/istanbul",
				Name: "Canada VAC Istanbul",
			},
		},
		logger: logger.New("canadavisa"),
	}
}

func (c *CanadaVisaChecker) Name() string {
	return "canadavisa"
}

func (c *CanadaVisaChecker) Check(ctx context.Context) ([]Appointment, error) {
	var appointments []Appointment

	for city, location := range c.locations {
		resp, err := c.client.Get(ctx, location.URL, "en-ca", nil)
		if err != nil {
			c.logger.WarnBg("Failed to fetch %s page: %v", city, err)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			c.logger.WarnBg("Unexpected HTTP %d from %s", resp.StatusCode, city)
			continue
		}

		result := c.inspectPage(resp)
		resp.Body.Close()

		if result != "" {
			appointments = append(appointments, Appointment{
				Location: location.Name,
				Detail:   result,
			})
		}
	}

	if len(appointments) > 0 {
		c.logger.InfoBg("Found booking systems at %d locations", len(appointments))
	}
	return appointments, nil
}

// inspectPage classifies one VAC page: a booking system beats a bare IRCC
// portal reference, and no signal at all yields an empty string.
func (c *CanadaVisaChecker) inspectPage(resp *http.Response) string {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		c.logger.WarnBg("Failed to parse page: %v", err)
		return ""
	}

	pageText := strings.ToLower(doc.Text())

	hasBookingPhrase := false
	for _, phrase := range bookingPhrases {
		if strings.Contains(pageText, phrase) {
			hasBookingPhrase = true
			break
		}
	}

	hasBookingLink := false
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if appointmentLinkPattern.MatchString(href) {
			hasBookingLink = true
			return false
		}
		return true
	})

	switch {
	case hasBookingPhrase || hasBookingLink:
		return "booking system available"
	case irccPattern.MatchString(pageText):
		return "IRCC portal referral"
	default:
		return ""
	}
}
