package validation

import "github.com/artpar/lexgate/domain/rule"

const (
	categoryInjection = "prompt-injection"
	categoryHarmful   = "harmful-content"
)

// injectionRules block attempts to override or extract the system prompt.
var injectionRules = rule.Table{
	rule.New("ignore-instructions", categoryInjection, `ignore\s+(all\s+)?(previous|prior|above|earlier)\s+(instructions|prompts|rules|directions)`, rule.SeverityHigh, true),
	rule.New("disregard-instructions", categoryInjection, `disregard\s+(all\s+)?(previous|prior|above|your)\s+(instructions|prompts|rules|guidelines)`, rule.SeverityHigh, true),
	rule.New("forget-instructions", categoryInjection, `forget\s+(all\s+)?(your|previous|prior)\s+(instructions|rules|training)`, rule.SeverityHigh, true),
	rule.New("role-override", categoryInjection, `you\s+are\s+now\s+(a|an|the|in)\b`, rule.SeverityHigh, true),
	rule.New("new-instructions", categoryInjection, `new\s+instructions\s*:`, rule.SeverityHigh, true),
	rule.New("reveal-prompt", categoryInjection, `(reveal|show|print|repeat|output|display)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions)`, rule.SeverityHigh, true),
	rule.New("system-prompt-query", categoryInjection, `what\s+(is|are)\s+your\s+(system\s+)?(prompt|instructions)`, rule.SeverityHigh, true),
	rule.New("roleplay", categoryInjection, `(pretend|act\s+as\s+if)\s+(you\s+are|you're|to\s+be)\s+(a|an)?\s*(unrestricted|unfiltered|evil|different)`, rule.SeverityHigh, true),
	rule.New("jailbreak", categoryInjection, `\b(jailbreak|DAN\s+mode|developer\s+mode|god\s+mode)\b`, rule.SeverityHigh, true),
	rule.New("delimiter-system", categoryInjection, `\[\[\s*system\s*\]\]|<\s*/?\s*system\s*>|<\|im_start\|>|<\|im_end\|>`, rule.SeverityHigh, true),
	rule.New("delimiter-inst", categoryInjection, `\[/?INST\]|###\s*(system|instruction)\s*:`, rule.SeverityHigh, true),
}

// harmfulRules block requests for dangerous instructions.
var harmfulRules = rule.Table{
	rule.New("weapons", categoryHarmful, `how\s+to\s+(make|build|create|assemble)\s+(a\s+)?(bomb|explosive|weapon|gun|firearm)`, rule.SeverityHigh, true),
	rule.New("explosives", categoryHarmful, `(synthesize|manufacture)\s+(explosives?|nerve\s+agents?|chemical\s+weapons?)`, rule.SeverityHigh, true),
	rule.New("hacking", categoryHarmful, `how\s+to\s+(hack|break)\s+into|(create|write|build)\s+(a\s+)?(malware|ransomware|virus|keylogger)`, rule.SeverityHigh, true),
	rule.New("violence", categoryHarmful, `how\s+to\s+(kill|murder|poison|hurt|harm)\s+(someone|a\s+person|people|my)`, rule.SeverityHigh, true),
}
