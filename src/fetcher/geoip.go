package fetcher

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

var defaultCountryDBs = []string{
	"/usr/share/GeoIP/GeoLite2-Country.mmdb",
	"/usr/local/share/GeoIP/GeoLite2-Country.mmdb",
}

var defaultASNDBs = []string{
	"/usr/share/GeoIP/GeoLite2-ASN.mmdb",
	"/usr/local/share/GeoIP/GeoLite2-ASN.mmdb",
}

func candidates(configured string, fallback []string) []string {
	if configured != "" {
		return []string{configured}
	}
	return fallback
}

// lookupCountry returns the ISO country code for ip from the first GeoLite2 country
// database that opens. ok=false when no database is available or the lookup fails.
func lookupCountry(ip net.IP, dbPath string) (string, bool) {
	if ip == nil {
		return "", false
	}
	for _, p := range candidates(dbPath, defaultCountryDBs) {
		db, err := geoip2.Open(p)
		if err != nil {
			continue
		}
		rec, err := db.Country(ip)
		db.Close()
		if err == nil && rec != nil && rec.Country.IsoCode != "" {
			return rec.Country.IsoCode, true
		}
	}
	return "", false
}

// lookupASN returns ASN number and organisation if available.
func lookupASN(ip net.IP, dbPath string) (uint, string, bool) {
	if ip == nil {
		return 0, "", false
	}
	for _, p := range candidates(dbPath, defaultASNDBs) {
		db, err := geoip2.Open(p)
		if err != nil {
			continue
		}
		rec, err := db.ASN(ip)
		db.Close()
		if err == nil && rec != nil {
			return rec.AutonomousSystemNumber, rec.AutonomousSystemOrganization, true
		}
	}
	return 0, "", false
}
