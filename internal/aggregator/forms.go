package aggregator

import "strings"

// formeCanonical collapses forme variants to one species name. Keys are
// lower-case. "-*" is how team preview hides a forme that is only revealed
// on switch-in.
var formeCanonical = map[string]string{
	"urshifu":               "Urshifu",
	"urshifu-*":             "Urshifu",
	"urshifu-rapid-strike":  "Urshifu",
	"urshifu-single-strike": "Urshifu",

	"tatsugiri":          "Tatsugiri",
	"tatsugiri-*":        "Tatsugiri",
	"tatsugiri-curly":    "Tatsugiri",
	"tatsugiri-droopy":   "Tatsugiri",
	"tatsugiri-stretchy": "Tatsugiri",

	"maushold":       "Maushold",
	"maushold-*":     "Maushold",
	"maushold-four":  "Maushold",
	"maushold-three": "Maushold",

	"dudunsparce":               "Dudunsparce",
	"dudunsparce-*":             "Dudunsparce",
	"dudunsparce-three-segment": "Dudunsparce",

	"polteageist":         "Polteageist",
	"polteageist-*":       "Polteageist",
	"polteageist-antique": "Polteageist",

	"sinistcha":             "Sinistcha",
	"sinistcha-*":           "Sinistcha",
	"sinistcha-masterpiece": "Sinistcha",

	"poltchageist":         "Poltchageist",
	"poltchageist-*":       "Poltchageist",
	"poltchageist-artisan": "Poltchageist",

	"gastrodon":      "Gastrodon",
	"gastrodon-*":    "Gastrodon",
	"gastrodon-east": "Gastrodon",

	"florges":        "Florges",
	"florges-*":      "Florges",
	"florges-blue":   "Florges",
	"florges-orange": "Florges",
	"florges-white":  "Florges",

	"squawkabilly":        "Squawkabilly",
	"squawkabilly-*":      "Squawkabilly",
	"squawkabilly-blue":   "Squawkabilly",
	"squawkabilly-yellow": "Squawkabilly",
	"squawkabilly-white":  "Squawkabilly",

	"alcremie":   "Alcremie",
	"alcremie-*": "Alcremie",

	"vivillon":          "Vivillon",
	"vivillon-*":        "Vivillon",
	"vivillon-fancy":    "Vivillon",
	"vivillon-pokeball": "Vivillon",
}

// CanonicalSpecies returns the display name used to key usage stats. Names not
// in the forme table are returned trimmed, with runs of spaces collapsed.
func CanonicalSpecies(name string) string {
	n := strings.Join(strings.Fields(name), " ")
	if c, ok := formeCanonical[strings.ToLower(n)]; ok {
		return c
	}
	return n
}

// speciesKey is the comparison key for a species name.
func speciesKey(name string) string {
	return strings.ToLower(CanonicalSpecies(name))
}
