package intent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// ScriptedReply is one entry of the canned reply table: first trigger
// pattern to match the input wins.
type ScriptedReply struct {
	Trigger string `json:"trigger"`
	Reply   string `json:"reply"`
}

//go:embed replies.json
var defaultRepliesJSON []byte

type compiledReply struct {
	trigger string
	re      *regexp.Regexp
	reply   string
}

// ReplyTable is the ordered scripted fallback table. Named triggers (all
// caps, no pattern meaning) also serve as message lookups, e.g. the
// welcome text.
type ReplyTable struct {
	entries []compiledReply
}

// DefaultReplies returns the embedded table. The embedded JSON is fixed at
// build time, so a parse failure here is a programming error.
func DefaultReplies() *ReplyTable {
	t, err := parseReplies(defaultRepliesJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded replies.json invalid: %v", err))
	}
	return t
}

// LoadReplies reads a reply table from a JSON file, for operator overrides.
func LoadReplies(path string) (*ReplyTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replies: %w", err)
	}
	return parseReplies(raw)
}

func parseReplies(raw []byte) (*ReplyTable, error) {
	var list []ScriptedReply
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode replies: %w", err)
	}
	t := &ReplyTable{}
	for _, r := range list {
		re, err := regexp.Compile("(?i)" + r.Trigger)
		if err != nil {
			return nil, fmt.Errorf("trigger %q: %w", r.Trigger, err)
		}
		t.entries = append(t.entries, compiledReply{trigger: r.Trigger, re: re, reply: r.Reply})
	}
	return t, nil
}

// Find returns the reply of the first trigger pattern matching message.
func (t *ReplyTable) Find(message string) (string, bool) {
	for _, e := range t.entries {
		if e.re.MatchString(message) {
			return e.reply, true
		}
	}
	return "", false
}

// Lookup returns the reply for an exact trigger name.
func (t *ReplyTable) Lookup(trigger string) (string, bool) {
	for _, e := range t.entries {
		if e.trigger == trigger {
			return e.reply, true
		}
	}
	return "", false
}
