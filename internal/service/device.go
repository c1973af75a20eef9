package service

import (
	"strings"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
)

var (
	botMarkers    = []string{"bot", "crawler", "spider", "slurp", "curl/", "wget/", "python-requests", "go-http-client"}
	tabletMarkers = []string{"ipad", "tablet", "kindle", "silk/", "playbook"}
	mobileMarkers = []string{"mobi", "iphone", "ipod", "android", "windows phone", "blackberry", "opera mini"}
	deskMarkers   = []string{"windows nt", "macintosh", "mac os x", "x11", "linux", "cros"}
)

// ClassifyDevice derives a coarse device type from a user agent string.
// Android without "mobile" is a tablet.
func ClassifyDevice(userAgent string) models.DeviceType {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return models.DeviceUnknown
	}
	switch {
	case containsAny(ua, botMarkers):
		return models.DeviceBot
	case containsAny(ua, tabletMarkers):
		return models.DeviceTablet
	case strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"):
		return models.DeviceTablet
	case containsAny(ua, mobileMarkers):
		return models.DeviceMobile
	case containsAny(ua, deskMarkers):
		return models.DeviceDesktop
	}
	return models.DeviceUnknown
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
