package ensemble

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SeedCorpus is the shared training/signature material for the members:
// whitelist patterns, attack signatures, and labelled exemplar lines.
// Loaded from seeds.yaml when a seed directory is configured, otherwise
// the built-in corpus below is used.
type SeedCorpus struct {
	SafePatterns   []string `yaml:"safe_patterns"`
	AttackKeywords []string `yaml:"attack_keywords"`
	AttackLines    []string `yaml:"attack_lines"`
	NormalLines    []string `yaml:"normal_lines"`
}

// LoadSeedCorpus reads seeds.yaml from dir, falling back to the
// built-in corpus when dir is empty or the file is unreadable.
func LoadSeedCorpus(dir string) *SeedCorpus {
	if dir == "" {
		return defaultSeedCorpus()
	}
	path := filepath.Join(dir, "seeds.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Could not read %s: %v. Using built-in seeds.\n", path, err)
		return defaultSeedCorpus()
	}
	var corpus SeedCorpus
	if err := yaml.Unmarshal(data, &corpus); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Could not parse %s: %v. Using built-in seeds.\n", path, err)
		return defaultSeedCorpus()
	}
	// Partial files inherit the built-in lists they leave out.
	def := defaultSeedCorpus()
	if len(corpus.SafePatterns) == 0 {
		corpus.SafePatterns = def.SafePatterns
	}
	if len(corpus.AttackKeywords) == 0 {
		corpus.AttackKeywords = def.AttackKeywords
	}
	if len(corpus.AttackLines) == 0 {
		corpus.AttackLines = def.AttackLines
	}
	if len(corpus.NormalLines) == 0 {
		corpus.NormalLines = def.NormalLines
	}
	return &corpus
}

func defaultSeedCorpus() *SeedCorpus {
	return &SeedCorpus{
		SafePatterns:   defaultSafePatterns,
		AttackKeywords: defaultAttackKeywords,
		AttackLines:    defaultAttackLines,
		NormalLines:    defaultNormalLines,
	}
}

// defaultSafePatterns whitelists operational log shapes that must never
// be flagged, whatever the models think. Matching is case-insensitive
// substring.
var defaultSafePatterns = []string{
	// Health check endpoints
	"/health", "/healthz", "/ready", "/readiness", "/liveness",
	"/actuator/health", "/status", "/ping",
	// Normal HTTP responses
	"200 ok", "201 created", "204 no content", "302 redirect",
	// Routine lifecycle
	"heartbeat", "bootnotification", "statusnotification",
	"service started", "configuration loaded", "scheduled task",
	"backup completed", "log rotation", "clock synced",
	"connection established", "login success", "completed",
	// Successful authentication
	"authentication successful", "session created", "token refreshed",
	// Non-attack warnings
	"low battery", "maintenance mode",
}

// defaultAttackKeywords are clear attack indicators. Generic
// operational words (error, fail, denied, critical) are deliberately
// absent; they triggered too many false positives.
var defaultAttackKeywords = []string{
	"flood", "flooding", "ddos", "dos_attack", "brute_force", "bruteforce",
	"brute force", "injection", "sql_injection", "sql injection", "xss",
	"malware", "trojan", "backdoor", "exploit", "payload", "shellcode",
	"rootkit", "keylogger", "ransomware", "cryptominer",
	"unauthorized_access", "unauthorized access", "privilege_escalation",
	"privilege escalation", "lateral_movement", "lateral movement",
	"data_exfiltration", "data exfiltration",
	"intrusion detected", "attack detected", "threat detected",
	"security breach", "malicious activity", "suspicious behavior",
}

// Labelled exemplars used to train the token-frequency member and to
// seed the semantic member's vector collection.
var defaultAttackLines = []string{
	"SQL injection attempt detected in request parameters",
	"Brute force attack: 50 failed login attempts from single source",
	"Port scan detected from external address",
	"Malware signature matched in uploaded payload",
	"Unauthorized access attempt to admin panel",
	"DDoS flood detected, SYN packets exceeding threshold",
	"Privilege escalation attempt via sudo misconfiguration",
	"Data exfiltration detected: large outbound transfer to unknown host",
	"Backdoor connection established to command and control server",
	"Cross-site scripting payload found in form input",
	"Lateral movement detected between internal hosts",
	"Ransomware encryption activity observed on file share",
	"Credential stuffing attack against login endpoint",
	"Man-in-the-middle attack: certificate mismatch detected",
	"Firmware injection attempt on charge point controller",
}

var defaultNormalLines = []string{
	"User login successful for account operator",
	"Service started and listening on port 8080",
	"Scheduled backup completed without errors",
	"Heartbeat received from station controller",
	"Configuration loaded from /etc/app/config.yaml",
	"HTTP GET /health 200 OK in 2ms",
	"Session created for authenticated user",
	"Charging transaction completed, 14.2 kWh delivered",
	"Meter values report received from charge point",
	"Connection established with central system",
	"Token refreshed for active session",
	"Log rotation finished, 3 files archived",
	"NTP clock synced with upstream server",
	"Firmware status notification: idle",
	"Energy consumption within expected range",
}
