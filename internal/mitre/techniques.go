// Sentriq - Ensemble Anomaly Detection and Guided Incident Response
// Copyright 2026 The Sentriq Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sentriq/sentriq

package mitre

import "sort"

// trigger describes how strongly one feature implicates a technique: the
// feature must exceed threshold-times-baseline to count, and weight sets
// its share of the technique's confidence.
type trigger struct {
	Threshold float64
	Weight    float64
}

// Technique is one MITRE ATT&CK technique with its telemetry triggers.
type Technique struct {
	ID          string
	Name        string
	Tactic      string
	Description string
	Triggers    map[string]trigger
	Remediation []string
}

// techniques is the rule table mapping feature deviations to ATT&CK
// techniques. Thresholds are deviation multipliers over the feature's
// normal baseline mean.
var techniques = map[string]Technique{
	"T1110": {
		ID: "T1110", Name: "Brute Force", Tactic: "Credential Access",
		Description: "Adversaries may use brute force techniques to gain access to accounts when passwords are unknown or when password hashes are obtained.",
		Triggers: map[string]trigger{
			"failed_logins": {Threshold: 3.0, Weight: 0.35},
			"auth_attempts": {Threshold: 3.0, Weight: 0.35},
			"network_in":    {Threshold: 1.5, Weight: 0.15},
			"network_out":   {Threshold: 1.5, Weight: 0.15},
		},
		Remediation: []string{
			"Monitor for multiple failed authentication attempts",
			"Implement account lockout policies",
			"Use multi-factor authentication",
			"Monitor for unusual authentication patterns",
		},
	},
	"T1496": {
		ID: "T1496", Name: "Resource Hijacking", Tactic: "Impact",
		Description: "Adversaries may leverage the resources of co-opted systems to solve resource intensive problems, which may impact system availability.",
		Triggers: map[string]trigger{
			"cpu_usage":        {Threshold: 2.5, Weight: 0.40},
			"network_out":      {Threshold: 2.0, Weight: 0.25},
			"process_creation": {Threshold: 2.0, Weight: 0.25},
			"memory_usage":     {Threshold: 1.8, Weight: 0.10},
		},
		Remediation: []string{
			"Monitor for unusual CPU usage patterns",
			"Investigate unauthorized processes",
			"Check for cryptocurrency mining activity",
			"Review outbound network connections",
		},
	},
	"T1048": {
		ID: "T1048", Name: "Exfiltration Over Alternative Protocol", Tactic: "Exfiltration",
		Description: "Adversaries may steal data by exfiltrating it over a different protocol than that of the existing command and control channel.",
		Triggers: map[string]trigger{
			"network_out": {Threshold: 3.0, Weight: 0.35},
			"disk_read":   {Threshold: 2.5, Weight: 0.25},
			"file_access": {Threshold: 2.5, Weight: 0.25},
			"dns_queries": {Threshold: 2.0, Weight: 0.15},
		},
		Remediation: []string{
			"Monitor for large outbound data transfers",
			"Inspect unusual DNS traffic",
			"Review file access patterns",
			"Implement data loss prevention (DLP)",
		},
	},
	"T1068": {
		ID: "T1068", Name: "Exploitation for Privilege Escalation", Tactic: "Privilege Escalation",
		Description: "Adversaries may exploit software vulnerabilities in an attempt to elevate privileges.",
		Triggers: map[string]trigger{
			"process_creation": {Threshold: 3.0, Weight: 0.35},
			"api_calls":        {Threshold: 2.5, Weight: 0.25},
			"memory_usage":     {Threshold: 2.0, Weight: 0.20},
			"failed_logins":    {Threshold: 2.0, Weight: 0.20},
		},
		Remediation: []string{
			"Monitor for unusual process creation",
			"Investigate privilege escalation attempts",
			"Apply security patches promptly",
			"Review API call patterns",
		},
	},
	"T1071": {
		ID: "T1071", Name: "Application Layer Protocol", Tactic: "Command and Control",
		Description: "Adversaries may communicate using application layer protocols to avoid detection/network filtering.",
		Triggers: map[string]trigger{
			"network_out": {Threshold: 2.0, Weight: 0.25},
			"network_in":  {Threshold: 2.0, Weight: 0.25},
			"dns_queries": {Threshold: 3.5, Weight: 0.35},
			"api_calls":   {Threshold: 2.0, Weight: 0.15},
		},
		Remediation: []string{
			"Monitor DNS for suspicious queries",
			"Inspect application layer traffic",
			"Analyze beaconing behavior",
			"Block known C2 domains",
		},
	},
	"T1021": {
		ID: "T1021", Name: "Remote Services", Tactic: "Lateral Movement",
		Description: "Adversaries may use valid accounts to log into a service specifically designed to accept remote connections.",
		Triggers: map[string]trigger{
			"network_in":       {Threshold: 2.5, Weight: 0.30},
			"auth_attempts":    {Threshold: 2.5, Weight: 0.30},
			"process_creation": {Threshold: 2.0, Weight: 0.25},
			"failed_logins":    {Threshold: 2.0, Weight: 0.15},
		},
		Remediation: []string{
			"Monitor for unusual remote access",
			"Review authentication logs",
			"Restrict lateral movement",
			"Segment the network",
		},
	},
	"T1190": {
		ID: "T1190", Name: "Exploit Public-Facing Application", Tactic: "Initial Access",
		Description: "Adversaries may attempt to exploit a weakness in an Internet-facing computer or program using software, data, or commands.",
		Triggers: map[string]trigger{
			"cpu_usage":        {Threshold: 1.8, Weight: 0.20},
			"memory_usage":     {Threshold: 2.0, Weight: 0.20},
			"network_in":       {Threshold: 2.5, Weight: 0.25},
			"api_calls":        {Threshold: 3.0, Weight: 0.25},
			"process_creation": {Threshold: 1.8, Weight: 0.10},
		},
		Remediation: []string{
			"Patch public-facing applications",
			"Implement web application firewall",
			"Monitor for exploitation attempts",
			"Review API security",
		},
	},
}

// GetTechnique looks up a technique by id.
func GetTechnique(id string) (Technique, bool) {
	t, ok := techniques[id]
	return t, ok
}

// AllTechniques returns every technique, ordered by id.
func AllTechniques() []Technique {
	out := make([]Technique, 0, len(techniques))
	for _, t := range techniques {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
