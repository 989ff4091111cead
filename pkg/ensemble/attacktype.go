package ensemble

import "strings"

// attackRule maps indicator keywords to a human attack-type label.
// First match wins, so specific rules come before general ones.
type attackRule struct {
	keywords []string
	label    string
}

var attackRules = []attackRule{
	// Injection
	{[]string{"sql injection", "sql_injection", "sqli"}, "SQL Injection Attempt"},
	{[]string{"xss", "cross-site scripting"}, "Cross-Site Scripting"},
	{[]string{"injection", "enjeksiyon"}, "Message Injection"},

	// Transport security
	{[]string{"tls", "ssl", "downgrade"}, "TLS Downgrade Attack"},
	{[]string{"mitm", "man-in-the-middle", "intercept", "certificate mismatch"}, "Man-in-the-Middle Attack"},
	{[]string{"certificate", "ssl_strip"}, "Certificate Attack"},

	// Malware
	{[]string{"firmware", "flash"}, "Firmware Injection"},
	{[]string{"malware", "trojan", "backdoor", "rootkit", "ransomware", "keylogger"}, "Malware Implant"},

	// Power / metering manipulation (charge-station fleets)
	{[]string{"load_manipulation", "load_kw", "power surge"}, "Power Load Manipulation"},
	{[]string{"metervalues", "meter tamper", "sayaç"}, "Meter Value Fraud"},
	{[]string{"tariff", "tarife", "billing", "fatura"}, "Tariff Manipulation"},
	{[]string{"fraud"}, "Billing Fraud"},

	// Authentication
	{[]string{"brute", "brute_force", "failed login", "credential stuffing"}, "Brute Force Attack"},
	{[]string{"plate", "rfid", "card clone"}, "Identity Spoofing"},
	{[]string{"credential", "password theft"}, "Credential Theft"},

	// Network
	{[]string{"scan", "recon", "lateral"}, "Network Reconnaissance"},
	{[]string{"ddos", "flood", "dos_attack", "syn"}, "Denial of Service"},
	{[]string{"exfiltration", "exfiltrate", "outbound transfer"}, "Data Exfiltration"},

	// Backend / access control
	{[]string{"rbac", "privilege", "escalation", "admin panel"}, "Privilege Escalation"},
	{[]string{"csms", "central system", "backend api"}, "Backend Attack"},
	{[]string{"intrusion", "penetration", "sızma"}, "Intrusion Attempt"},
	{[]string{"unauthorized"}, "Unauthorized Access"},

	// Generic
	{[]string{"attack", "saldırı", "saldiri"}, "Direct Attack"},
	{[]string{"anomaly", "anomali", "unusual", "abnormal", "suspicious"}, "Traffic Anomaly"},
}

// datasetFallbacks labels attacks where no keyword rule matched, keyed
// by the batch's detected dataset profile.
var datasetFallbacks = map[string]string{
	"ids-log":     "IDS Security Anomaly",
	"service-log": "Backend Security Anomaly",
	"sensor":      "Sensor Reading Anomaly",
	"live":        "Live Traffic Anomaly",
}

// ClassifyAttack returns a human attack-type label for flagged log
// text. Falls back to a profile-specific label, then a generic one.
func ClassifyAttack(text, profile string) string {
	lower := strings.ToLower(text)
	for _, rule := range attackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.label
			}
		}
	}
	if label, ok := datasetFallbacks[profile]; ok {
		return label
	}
	return "Security Anomaly"
}
