package fetch

import (
	"net/url"
	"strings"
)

// Platform is a recognized applicant-tracking-system job board.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformAshby      Platform = "ashby"
	PlatformUnknown    Platform = "unknown"
)

// platformHosts maps host substrings to platforms.
var platformHosts = []struct {
	fragment string
	platform Platform
}{
	{"greenhouse.io", PlatformGreenhouse},
	{"lever.co", PlatformLever},
	{"myworkdayjobs.com", PlatformWorkday},
	{"workday.com", PlatformWorkday},
	{"ashbyhq.com", PlatformAshby},
}

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Host)
	for _, entry := range platformHosts {
		if strings.Contains(host, entry.fragment) {
			return entry.platform
		}
	}
	return PlatformUnknown
}

// ContentSelectors returns the description selectors to try for a platform,
// most specific first, ending with generic fallbacks.
func ContentSelectors(platform Platform) []string {
	var specific []string
	switch platform {
	case PlatformGreenhouse:
		specific = []string{".job__description.body", ".job__description", "#content .content"}
	case PlatformLever:
		specific = []string{".posting-page .section-wrapper", ".posting-content", ".content"}
	case PlatformWorkday:
		specific = []string{"[data-automation-id='jobPostingDescription']", ".jobPostingDescription"}
	case PlatformAshby:
		specific = []string{".ashby-job-posting-content", "#overview"}
	}
	generic := []string{
		".job-description", "#job-description", ".job-details",
		"main", "article", ".content", "#content",
	}
	return append(specific, generic...)
}

// NoiseSelectors returns platform-specific elements to strip before text
// extraction, on top of the generic noise removal.
func NoiseSelectors(platform Platform) []string {
	switch platform {
	case PlatformGreenhouse:
		return []string{"#application", ".application--form", "#grnhse_app"}
	case PlatformLever:
		return []string{".postings-btn-wrapper", ".posting-apply"}
	case PlatformWorkday:
		return []string{"[data-automation-id='similarJobs']"}
	default:
		return nil
	}
}
