package authcore

import "strings"

// DeviceClass is the coarse device category derived from a user agent.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
	DeviceUnknown DeviceClass = "unknown"
)

// ClassifyDevice derives a DeviceClass from a raw User-Agent string.
// "Mobile" wins over "Tablet" when both appear, matching the order the
// checks have always run in.
func ClassifyDevice(userAgent string) DeviceClass {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceUnknown
	}
	lower := strings.ToLower(userAgent)
	if strings.Contains(lower, "mobile") {
		return DeviceMobile
	}
	if strings.Contains(lower, "tablet") {
		return DeviceTablet
	}
	return DeviceDesktop
}
