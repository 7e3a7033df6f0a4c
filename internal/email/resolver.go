package email

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// IMAP endpoints for providers commonly hosting partner-bank mailboxes.
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"office365.com":  "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"zoho.in":        "imappro.zoho.in:993",
	"zohomail.in":    "imappro.zoho.in:993",
	"fastmail.com":   "imap.fastmail.com:993",
	"icloud.com":     "imap.mail.me.com:993",
}

// ResolveIMAPServer determines the IMAP server for a mailbox address when
// IMAP_SERVER is not configured explicitly.
func ResolveIMAPServer(address string) (string, error) {
	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid mailbox address %q", address)
	}

	domain := strings.ToLower(parts[1])

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	// Common hostname patterns
	for _, host := range []string{"imap." + domain, "mail." + domain} {
		if probeIMAP(host) {
			return host + ":993", nil
		}
	}

	// Derive from the MX host's base domain
	if server, err := resolveViaMX(domain); err == nil {
		return server, nil
	}

	// Fallback guess
	return "imap." + domain + ":993", nil
}

// probeIMAP checks whether host accepts connections on the IMAPS port.
func probeIMAP(host string) bool {
	conn, err := net.DialTimeout("tcp", host+":993", 3*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func resolveViaMX(domain string) (string, error) {
	mxRecords, err := net.LookupMX(domain)
	if err != nil || len(mxRecords) == 0 {
		return "", fmt.Errorf("no MX records found for %s", domain)
	}

	mxHost := strings.TrimSuffix(mxRecords[0].Host, ".")
	parts := strings.SplitN(mxHost, ".", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("could not derive IMAP server from MX host %s", mxHost)
	}

	base := parts[1]
	for _, host := range []string{"imap." + base, "mail." + base} {
		if probeIMAP(host) {
			return host + ":993", nil
		}
	}

	return "", fmt.Errorf("could not determine IMAP server for %s", domain)
}
