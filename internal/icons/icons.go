// Package icons maps weather condition keywords to static icon assets.
package icons

import "strings"

// Clear is the fallback asset.
const Clear = "weather-icons/clear.svg"

var assets = map[string]string{
	"clear":        Clear,
	"clouds":       "weather-icons/clouds.svg",
	"rain":         "weather-icons/rain.svg",
	"snow":         "weather-icons/snow.svg",
	"thunderstorm": "weather-icons/thunderstorm.svg",
	"mist":         "weather-icons/mist.svg",
	"fog":          "weather-icons/mist.svg",
}

// For returns the asset path for a condition keyword such as "Rain" or
// "Clouds". Unknown keywords get the clear icon.
func For(conditionMain string) string {
	if p, ok := assets[strings.ToLower(conditionMain)]; ok {
		return p
	}
	return Clear
}
