package builder

import (
	"fmt"
	"strings"
	"time"
)

// InteractionType identifies the channel through which one account
// influenced another.
type InteractionType string

// Interaction channels. A reshare, quote, reply or mention by account A of
// account B's content is recorded as an interaction B → A: B influenced A.
const (
	Reshare InteractionType = "reshare"
	Quote   InteractionType = "quote"
	Reply   InteractionType = "reply"
	Mention InteractionType = "mention"
)

// Types lists every known interaction type in canonical order. Per-type
// probabilities are combined in this order so that builds are reproducible
// bit for bit.
var Types = []InteractionType{Reshare, Quote, Reply, Mention}

// ParseInteractionType maps a tag to an InteractionType. The original
// pipeline's names ("retweet", "retweeted", "quoted", "replied_to") are
// accepted as aliases.
func ParseInteractionType(s string) (InteractionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reshare", "retweet", "retweeted":
		return Reshare, nil
	case "quote", "quoted":
		return Quote, nil
	case "reply", "replied_to":
		return Reply, nil
	case "mention", "mentioned":
		return Mention, nil
	}
	return "", fmt.Errorf("unknown interaction type %q", s)
}

// Valid reports whether t is one of the known interaction types.
func (t InteractionType) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// RawInteraction is one observed influence event (or a pre-counted batch of
// them) between two accounts. It is consumed once by the Builder and not
// retained.
type RawInteraction struct {
	Source string          // influencer account id
	Target string          // influenced account id
	Type   InteractionType // channel
	Count  int             // occurrences; a zero count is dropped
	At     time.Time       // optional timestamp of the occurrence
}

