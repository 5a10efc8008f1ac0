// Package safety implements the layered content gate used by every stage of
// the decomposition pipeline: a blocklist of terms, a set of regex patterns,
// and a pluggable classifier, with denied checks appended to an audit log.
package safety

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RedactionPlaceholder is the fixed stand-in for content that failed a gate.
// It preserves the structural shape of the output without disclosing the
// original text.
const RedactionPlaceholder = "[REDACTED for safety]"

// previewLen bounds the amount of denied text copied into the audit log.
const previewLen = 120

// Verdict is the outcome of a single safety check.
type Verdict struct {
	Allowed bool     `json:"allowed"`
	Reasons []string `json:"reasons,omitempty"`
}

// ViolationError is returned when text fails the safety policy. It carries
// the ordered reason tags so callers can reconstruct what was filtered.
type ViolationError struct {
	Context string
	Reasons []string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("text failed safety policy: %s", strings.Join(e.Reasons, ", "))
}

// Classification is the result of the pluggable classifier stage.
type Classification struct {
	Label    string
	Category string
}

// Classifier is the pluggable content-classifier capability. It is consulted
// only when no blocklist or pattern reason fired.
type Classifier interface {
	Classify(text string) Classification
}

// Policy evaluates text against a blocklist, regex patterns, and a
// classifier. Policies are explicit values passed into each check; there is
// no process-wide default instance.
type Policy struct {
	blocklist  []string
	patterns   []*regexp.Regexp
	rawPattern []string
	classifier Classifier
	events     EventSink
}

// Option configures a Policy.
type Option func(*Policy)

// WithBlocklist replaces the default blocklist terms.
func WithBlocklist(terms []string) Option {
	return func(p *Policy) { p.blocklist = terms }
}

// WithPatterns replaces the default regex patterns. Patterns that fail to
// compile are skipped, matching the tolerant behavior of the pattern stage.
func WithPatterns(patterns []string) Option {
	return func(p *Policy) {
		p.patterns = nil
		p.rawPattern = nil
		for _, pat := range patterns {
			re, err := regexp.Compile("(?i)" + pat)
			if err != nil {
				continue
			}
			p.patterns = append(p.patterns, re)
			p.rawPattern = append(p.rawPattern, pat)
		}
	}
}

// WithClassifier sets the classifier stage.
func WithClassifier(c Classifier) Option {
	return func(p *Policy) { p.classifier = c }
}

// WithEventSink sets the audit sink receiving denied checks.
func WithEventSink(s EventSink) Option {
	return func(p *Policy) { p.events = s }
}

// NewPolicy builds a policy with the conservative default blocklist and
// patterns unless overridden.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		classifier: placeholderClassifier{},
		events:     discardSink{},
	}
	WithBlocklist(DefaultBlocklist())(p)
	WithPatterns(DefaultPatterns())(p)
	for _, o := range opts {
		o(p)
	}
	return p
}

// Check evaluates text against the policy. Empty text is vacuously safe and
// short-circuits before any pattern evaluation. On denial it returns a
// non-allowed Verdict together with a *ViolationError carrying the same
// reasons, after appending one event to the audit sink.
func (p *Policy) Check(text, context string) (Verdict, error) {
	if text == "" {
		return Verdict{Allowed: true}, nil
	}

	lower := strings.ToLower(text)
	var reasons []string

	for _, term := range p.blocklist {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			reasons = append(reasons, "blocklist:"+term)
		}
	}

	for i, re := range p.patterns {
		if re.MatchString(text) {
			reasons = append(reasons, "pattern:"+p.rawPattern[i])
		}
	}

	// The classifier is a secondary stage: only consulted when no hard
	// trigger fired.
	if len(reasons) == 0 && p.classifier != nil {
		cls := p.classifier.Classify(text)
		if cls.Label != "safe" && cls.Label != "benign" {
			reasons = append(reasons, fmt.Sprintf("classifier:%s/%s", cls.Label, cls.Category))
		}
	}

	if len(reasons) == 0 {
		return Verdict{Allowed: true}, nil
	}

	p.logEvent(Event{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Context:     context,
		Reason:      reasons,
		TextPreview: preview(text),
	})

	return Verdict{Allowed: false, Reasons: reasons}, &ViolationError{Context: context, Reasons: reasons}
}

// Ok is the boolean convenience wrapper around Check; it swallows the deny
// case.
func (p *Policy) Ok(text string) bool {
	v, _ := p.Check(text, "")
	return v.Allowed
}

// logEvent appends a denial to the audit sink. Auditing is best-effort: a
// sink failure must never crash the primary path, so the error is observed
// and discarded here and nowhere else.
func (p *Policy) logEvent(ev Event) {
	_ = p.events.Append(ev)
}

// preview truncates on rune boundaries so the audit log never holds a
// split multi-byte character.
func preview(text string) string {
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen])
}

// placeholderClassifier always reports benign content. A real content
// classifier can be swapped in without touching call sites.
type placeholderClassifier struct{}

func (placeholderClassifier) Classify(string) Classification {
	return Classification{Label: "safe", Category: "benign"}
}

// DefaultBlocklist returns the conservative pipeline-side blocklist.
func DefaultBlocklist() []string {
	return []string{
		// Violence/terrorism
		"kill", "murder", "terror", "bomb", "weapon", "shoot", "suicide",
		// Cybercrime
		"hack", "hacking", "exploit", "malware", "ransomware", "phishing", "keylogger", "ddos",
		// Illegal activity
		"drug manufacturing", "counterfeit", "forgery",
		// Adult content, conservatively broad
		"porn", "nude", "explicit", "sex",
		// Harm to minors
		"child abuse", "cp", "minor sexual",
		// Self-harm
		"self harm", "self-harm",
		// Gore
		"gore", "torture",
	}
}

// DefaultPatterns returns the pipeline-side regex patterns.
func DefaultPatterns() []string {
	return []string{
		`\bhow to (build|make|buy) (a )?(weapon|bomb)\b`,
		`\b(bypass|break|crack) (security|password|drm)\b`,
		`\bmanufactur(e|ing) (drugs|narcotics)\b`,
	}
}

// DatasetBlocklist returns the generator-side blocklist: credentials, network
// hints, exploit vocabulary, and dangerous shell commands.
func DatasetBlocklist() []string {
	return []string{
		"api_key=", "aws_secret", "gcp_key", "azure_key", "token=", "password=",
		"127.0.0.1", "0.0.0.0", "/etc/passwd", "private key",
		"exploit", "rce", "reverse shell", "payload",
		"rm -rf", "sudo ", "wget ", "curl ", "ssh ", "nc ", "nmap ", "chmod +x",
	}
}

// DatasetPatterns returns the generator-side patterns (JWT-like tokens and
// IPv4 addresses).
func DatasetPatterns() []string {
	return []string{
		`\b[A-Za-z0-9_]{16,}\.[A-Za-z0-9_\-]{10,}\.[A-Za-z0-9_\-]{10,}`,
		`\b\d{1,3}(?:\.\d{1,3}){3}\b`,
	}
}
