// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package playbook

// step builds a required step without a hook; variants below add the rest.
func step(id string, order int, title, desc string, action ActionType, mins int) Step {
	return Step{ID: id, Order: order, Title: title, Description: desc, ActionType: action, EstimatedMinutes: mins, Required: true}
}

func optStep(id string, order int, title, desc string, action ActionType, mins int) Step {
	s := step(id, order, title, desc, action, mins)
	s.Required = false
	return s
}

func autoStep(id string, order int, title, desc string, mins int, hook string) Step {
	s := step(id, order, title, desc, ActionAutomated, mins)
	s.AutomationHook = hook
	return s
}

func optAutoStep(id string, order int, title, desc string, mins int, hook string) Step {
	s := autoStep(id, order, title, desc, mins, hook)
	s.Required = false
	return s
}

// Library returns the built-in response procedures, in catalog order.
func Library() []Definition {
	return []Definition{
		{
			ID: "PB-PHISH-01", Name: "Phishing Response",
			Description:  "Standard response to reported phishing email",
			IncidentType: "phishing",
			Severity:     []string{"critical", "high", "medium"},
			MitreTechniques:   []string{"T1566", "T1204", "T1114"},
			EstimatedDuration: 30,
			Steps: []Step{
				step("s1", 1, "Analyze Headers", "Check SPF/DKIM/DMARC alignment", ActionManual, 5),
				autoStep("s2", 2, "Extract IOCs", "Identify URLs, attachments, and sender IPs", 2, "extractIOCs"),
				autoStep("s3", 3, "Threat Intelligence Check", "Query VirusTotal/AlienVault for reputation", 3, "checkReputation"),
				autoStep("s4", 4, "Block Sender", "Add sender verification block on gateway", 1, "blockSender"),
				autoStep("s5", 5, "Purge Inbox", "Remove email from all user inboxes", 10, "purgeEmail"),
				step("s6", 6, "Reset User Creds", "Force password reset if click detected", ActionDecision, 5),
				optStep("s7", 7, "User Awareness", "Assign training to reported user", ActionManual, 5),
			},
		},
		{
			ID: "PB-RANSOM-02", Name: "Ransomware Response",
			Description:  "Immediate containment of ransomware outbreak",
			IncidentType: "ransomware",
			Severity:     []string{"critical"},
			MitreTechniques:   []string{"T1486", "T1489", "T1059"},
			EstimatedDuration: 45,
			Steps: []Step{
				autoStep("s1", 1, "Isolate Endpoint", "Cut network access to infected host", 1, "isolateEndpoint"),
				autoStep("s2", 2, "Snapshot VM", "Take forensic memory/disk snapshot", 5, "snapshotSystem"),
				step("s3", 3, "Identify Variant", "Determine ransomware family based on extension/note", ActionManual, 10),
				autoStep("s4", 4, "Disable SMB/RDP", "Close propagation ports laterally", 3, "blockPropagation"),
				step("s5", 5, "Check Backups", "Verify integrity of latest backups", ActionManual, 15),
				autoStep("s6", 6, "Kill Process", "Terminate suspicious processes", 2, "killProcess"),
				autoStep("s7", 7, "Reset Credentials", "Force password reset for compromised accounts", 5, "resetCredentials"),
				step("s8", 8, "Legal/PR Notify", "Draft breach notification if data exfiltrated", ActionManual, 30),
			},
		},
		{
			ID: "PB-AUTH-03", Name: "Unauthorized Access",
			Description:  "Response to suspicious login activity",
			IncidentType: "unauthorized_access",
			Severity:     []string{"critical", "high", "medium"},
			MitreTechniques:   []string{"T1078", "T1110"},
			EstimatedDuration: 35,
			Steps: []Step{
				step("s1", 1, "Verify Activity", "Contact user to confirm login attempt", ActionManual, 5),
				optAutoStep("s2", 2, "Geo-IP Correlation", "Check login distance vs travel time", 1, "geoCheck"),
				autoStep("s3", 3, "Lock Account", "Disable user account in directory", 1, "disableUser"),
				autoStep("s4", 4, "Revoke Sessions", "Kill active sessions and tokens", 2, "revokeSessions"),
				step("s5", 5, "Device Integrity", "Check MDM status of source device", ActionManual, 10),
				optAutoStep("s6", 6, "Analyze Source", "Analyze source IP reputation and history", 2, "analyzeIP"),
			},
		},
		{
			ID: "PB-DATA-04", Name: "Data Breach",
			Description:  "DLP alert response protocol",
			IncidentType: "data_leak",
			Severity:     []string{"critical", "high"},
			MitreTechniques:   []string{"T1005", "T1041"},
			EstimatedDuration: 60,
			Steps: []Step{
				step("s1", 1, "Classify Data", "Determine sensitivity of leaked data (PII/PHI)", ActionDecision, 10),
				autoStep("s2", 2, "Content Search", "Scan egress logs for similar patterns", 15, "searchLogs"),
				autoStep("s3", 3, "Block Transfer", "Terminate active file transfers", 1, "blockTransfer"),
				autoStep("s4", 4, "Lock Cloud Access", "Suspend SaaS API tokens", 2, "suspendTokens"),
				step("s5", 5, "Interview User", "Determine intent vs accident", ActionManual, 30),
				step("s6", 6, "Legal Notification", "Notify legal/compliance team", ActionManual, 30),
			},
		},
		{
			ID: "PB-MAL-05", Name: "Malware Response",
			Description:  "General malware infection cleanup",
			IncidentType: "malware",
			Severity:     []string{"critical", "high", "medium"},
			MitreTechniques:   []string{"T1059", "T1547"},
			EstimatedDuration: 25,
			Steps: []Step{
				autoStep("s1", 1, "Get Sample", "Retrieve file sample for sandbox analysis", 5, "collectSample"),
				autoStep("s2", 2, "Sandbox Analysis", "Run sample in detonation chamber", 10, "detonateSample"),
				step("s3", 3, "Cleanup Artifacts", "Remove files and registry keys", ActionManual, 10),
			},
		},
		{
			ID: "PB-DDOS-06", Name: "DDoS Mitigation",
			Description:  "Response to volumetric attacks",
			IncidentType: "ddos",
			Severity:     []string{"critical", "high"},
			MitreTechniques:   []string{"T1498", "T1499"},
			EstimatedDuration: 15,
			Steps: []Step{
				autoStep("s1", 1, "Analyze Traffic", "Identify attack vector and sources", 5, "analyzeTraffic"),
				autoStep("s2", 2, "Activate WAF", "Enable under-attack mode", 1, "enableUnderAttackMode"),
				step("s3", 3, "Rate Limiting", "Apply aggressive rate limiting rules", ActionManual, 5),
			},
		},
		{
			ID: "PB-INSIDE-07", Name: "Insider Threat",
			Description:  "Investigate anomalous user behavior",
			IncidentType: "insider_threat",
			Severity:     []string{"high", "medium"},
			MitreTechniques:   []string{"T1078", "T1530"},
			EstimatedDuration: 120,
			Steps: []Step{
				autoStep("s1", 1, "Snapshot User Activity", "Pull logs for last 30 days", 10, "pullUserLogs"),
				step("s2", 2, "HR Consultation", "Check for recent employment status changes", ActionManual, 60),
				step("s3", 3, "Enhanced Monitoring", "Enable full packet capture for user", ActionManual, 15),
			},
		},
		{
			ID: "PB-SQLI-08", Name: "SQL Injection",
			Description:  "Web application attack response",
			IncidentType: "sqli",
			Severity:     []string{"critical", "high"},
			MitreTechniques:   []string{"T1190", "T1059"},
			EstimatedDuration: 20,
			Steps: []Step{
				autoStep("s1", 1, "Block IP", "Add attacking IP to firewall blocklist", 1, "blockIP"),
				step("s2", 2, "Check DB Logs", "Look for successful query execution", ActionManual, 10),
				step("s3", 3, "Patch Vulnerability", "Coordinate with dev team for hotfix", ActionManual, 60),
			},
		},
		{
			ID: "PB-SUPPLY-09", Name: "Supply Chain Attack",
			Description:  "Compromised vendor software response",
			IncidentType: "supply_chain",
			Severity:     []string{"critical"},
			MitreTechniques:   []string{"T1195", "T1199"},
			EstimatedDuration: 240,
			Steps: []Step{
				autoStep("s1", 1, "Identify Scope", "List all systems running affected software", 15, "inventoryScan"),
				step("s2", 2, "Network Segmentation", "Isolate affected VLANs", ActionManual, 30),
				step("s3", 3, "Vendor Comm", "Contact vendor for updates/IOCs", ActionManual, 15),
			},
		},
		{
			ID: "PB-CRYPTO-10", Name: "Cryptomining",
			Description:  "Unauthorized resource usage",
			IncidentType: "crypto_mining",
			Severity:     []string{"medium", "low"},
			MitreTechniques:   []string{"T1496", "T1059"},
			EstimatedDuration: 15,
			Steps: []Step{
				autoStep("s1", 1, "Kill Miner", "Terminate CPU high-usage process", 1, "killProcess"),
				autoStep("s2", 2, "Block Pool", "Block outbound traffic to mining pools", 1, "updateFirewall"),
				step("s3", 3, "Persistence Check", "Look for scheduled tasks", ActionManual, 10),
			},
		},
		{
			ID: "PB-ATO-11", Name: "Account Takeover",
			Description:  "Full account compromise recovery",
			IncidentType: "account_takeover",
			Severity:     []string{"critical", "high"},
			MitreTechniques:   []string{"T1078", "T1110"},
			EstimatedDuration: 40,
			Steps: []Step{
				autoStep("s1", 1, "Force Logout", "Revoke all active sessions", 1, "revokeSessions"),
				autoStep("s2", 2, "Reset MFA", "Clear existing MFA tokens", 2, "resetMFA"),
				step("s3", 3, "Audit Access", "Review access logs for lateral movement", ActionManual, 20),
			},
		},
	}
}

// recommendKeywords maps attack-type substrings to playbook ids, used when
// no playbook's incident type matches the attack type directly.
var recommendKeywords = map[string][]string{
	"brute_force":     {"PB-ATO-11", "PB-AUTH-03"},
	"password":        {"PB-ATO-11"},
	"scanning":        {"PB-AUTH-03"},
	"discovery":       {"PB-AUTH-03"},
	"credential":      {"PB-ATO-11"},
	"c2":              {"PB-MAL-05"},
	"command_control": {"PB-MAL-05"},
	"lateral":         {"PB-AUTH-03"},
	"rootkit":         {"PB-MAL-05"},
	"trojan":          {"PB-MAL-05"},
	"virus":           {"PB-MAL-05"},
	"worm":            {"PB-MAL-05"},
	"exfiltration":    {"PB-DATA-04"},
	"leak":            {"PB-DATA-04"},
	"dos":             {"PB-DDOS-06"},
	"flood":           {"PB-DDOS-06"},
	"insider":         {"PB-INSIDE-07"},
	"sql":             {"PB-SQLI-08"},
	"injection":       {"PB-SQLI-08"},
	"xss":             {"PB-SQLI-08"},
	"chain":           {"PB-SUPPLY-09"},
	"dependency":      {"PB-SUPPLY-09"},
	"crypto":          {"PB-CRYPTO-10"},
	"miner":           {"PB-CRYPTO-10"},
	"login":           {"PB-ATO-11"},
	"privilege":       {"PB-ATO-11", "PB-AUTH-03"},
	"escalation":      {"PB-ATO-11"},
	"zero_day":        {"PB-MAL-05", "PB-RANSOM-02"},
	"exploit":         {"PB-MAL-05"},
	"vulnerability":   {"PB-SUPPLY-09"},
}
