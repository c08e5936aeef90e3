package builder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/papapumpkin/contagion/internal/graph"
)

// ReadInteractions parses interaction records from CSV with columns
// source,target,type[,count[,timestamp]]. A header row whose first field is
// "source" is skipped. A missing or blank count means one occurrence; an
// explicit 0 is kept so the Builder can drop it. Unknown type tags are kept verbatim so the Builder
// can count them as dropped; a row that cannot be parsed at all fails with
// a *graph.IOFormatError.
func ReadInteractions(r io.Reader) ([]RawInteraction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []RawInteraction
	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, &graph.IOFormatError{Format: "csv", Err: err}
		}
		line, _ := cr.FieldPos(0)
		if first && strings.EqualFold(rec[0], "source") {
			continue
		}
		ri, err := parseInteraction(rec)
		if err != nil {
			return nil, &graph.IOFormatError{Format: "csv", Line: line, Err: err}
		}
		out = append(out, ri)
	}
}

func parseInteraction(rec []string) (RawInteraction, error) {
	if len(rec) < 3 {
		return RawInteraction{}, fmt.Errorf("want at least 3 fields (source,target,type), got %d", len(rec))
	}
	ri := RawInteraction{
		Source: strings.TrimSpace(rec[0]),
		Target: strings.TrimSpace(rec[1]),
		Count:  1,
	}
	t, err := ParseInteractionType(rec[2])
	if err != nil {
		t = InteractionType(strings.TrimSpace(rec[2]))
	}
	ri.Type = t

	if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(rec[3]))
		if err != nil {
			return RawInteraction{}, fmt.Errorf("count %q: %w", rec[3], err)
		}
		ri.Count = n
	}
	if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[4]))
		if err != nil {
			return RawInteraction{}, fmt.Errorf("timestamp %q: %w", rec[4], err)
		}
		ri.At = at
	}
	return ri, nil
}

// ReadAccounts parses an account roster from CSV with columns
// id[,username[,activity]]. It returns the roster and, when at least one row
// carries an activity value, the activity table keyed by id.
func ReadAccounts(r io.Reader) ([]Account, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var (
		accounts []Account
		activity map[string]int
	)
	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return accounts, activity, nil
		}
		if err != nil {
			return nil, nil, &graph.IOFormatError{Format: "csv", Err: err}
		}
		line, _ := cr.FieldPos(0)
		if first && strings.EqualFold(rec[0], "id") {
			continue
		}
		a := Account{ID: strings.TrimSpace(rec[0])}
		if a.ID == "" {
			return nil, nil, &graph.IOFormatError{Format: "csv", Line: line, Err: errors.New("empty account id")}
		}
		if len(rec) > 1 {
			a.Username = strings.TrimSpace(rec[1])
		}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(rec[2]))
			if err != nil {
				return nil, nil, &graph.IOFormatError{Format: "csv", Line: line, Err: fmt.Errorf("activity %q: %w", rec[2], err)}
			}
			if activity == nil {
				activity = make(map[string]int)
			}
			activity[a.ID] = n
		}
		accounts = append(accounts, a)
	}
}
