package cmd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/papapumpkin/contagion/internal/builder"
)

func TestCommands_Registered(t *testing.T) {
	t.Parallel()

	want := []string{"build", "compute", "convert", "ingest", "stats", "watch", "runs", "events"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("expected %q subcommand to be registered on rootCmd", name)
		}
	}
}

func TestCommands_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cmd  string
		flag string
	}{
		{"build", "output"},
		{"build", "from-db"},
		{"build", "profile"},
		{"compute", "order"},
		{"compute", "beta"},
		{"compute", "tolerance"},
		{"compute", "workers"},
		{"compute", "format"},
		{"compute", "save"},
		{"convert", "roster"},
		{"ingest", "accounts"},
		{"stats", "buckets"},
		{"watch", "metrics-addr"},
		{"watch", "from"},
		{"events", "follow"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			t.Parallel()
			c, _, err := rootCmd.Find([]string{tt.cmd})
			if err != nil {
				t.Fatalf("Find(%q): %v", tt.cmd, err)
			}
			if c.Flags().Lookup(tt.flag) == nil {
				t.Errorf("expected flag %q on %s", tt.flag, tt.cmd)
			}
		})
	}
}

func TestComputeCmd_OrderShorthand(t *testing.T) {
	t.Parallel()
	f := computeCmd.Flags().ShorthandLookup("k")
	if f == nil || f.Name != "order" {
		t.Fatalf("expected -k to be shorthand for --order, got %+v", f)
	}
	if f.DefValue != "5" {
		t.Errorf("--order default = %s, want 5", f.DefValue)
	}
}

func TestFormatDataMap_SortsKeys(t *testing.T) {
	t.Parallel()
	got := formatDataMap(map[string]any{"nodes": 4, "beta": 0.5, "edges": 3})
	if want := "beta=0.5 edges=3 nodes=4"; got != want {
		t.Errorf("formatDataMap = %q, want %q", got, want)
	}
}

func TestPrintEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		line     string
		contains []string
	}{
		{
			name:     "run done",
			line:     `{"ts":"2026-01-02T03:04:05Z","kind":"run_done","graph":"g.json","data":{"nodes":4,"top":"b"}}`,
			contains: []string{"run_done", "graph=g.json", "nodes=4 top=b"},
		},
		{
			name:     "saved run",
			line:     `{"ts":"2026-01-02T03:04:05Z","kind":"run_saved","run":"abc"}`,
			contains: []string{"run_saved", "run=abc"},
		},
		{
			name:     "garbage",
			line:     `not json`,
			contains: []string{"??? not json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			printEvent(&buf, tt.line)
			for _, s := range tt.contains {
				if !strings.Contains(buf.String(), s) {
					t.Errorf("output %q missing %q", buf.String(), s)
				}
			}
		})
	}
}

func TestReadRoster(t *testing.T) {
	t.Parallel()
	in := "# accounts\ncarol\n\n  alice  \nbob\n"
	got, err := readRoster(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"carol", "alice", "bob"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("readRoster = %v, want %v", got, want)
	}
}

func TestPrintBuildReport(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	printBuildReport(&buf, builder.Report{
		Interactions: 7,
		Accepted:     4,
		Dropped: map[builder.DropReason]int{
			builder.DropSelfLoop:    2,
			builder.DropUnknownType: 1,
		},
		Suppressed: 1,
		Nodes:      3,
		Edges:      2,
	})
	got := buf.String()
	for _, want := range []string{
		"interactions: 7 read, 4 accepted",
		"dropped: 3",
		"self_loop",
		"suppressed pairs (below min activity): 1",
		"graph: 3 nodes, 2 edges",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
	if strings.Index(got, "self_loop") > strings.Index(got, "unknown_type") {
		t.Errorf("drop reasons should be sorted:\n%s", got)
	}
}

// resetFlag restores a flag to its default so later invocations of the
// shared command tree do not inherit it.
func resetFlag(f *pflag.Flag) {
	_ = f.Value.Set(f.DefValue)
	f.Changed = false
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("contagion %s: %v\nstderr:\n%s", strings.Join(args, " "), err, errOut.String())
	}
	return out.String()
}

func TestPipeline_BuildComputeSave(t *testing.T) {
	// Not parallel: drives the shared rootCmd and viper state.
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "interactions.csv")
	csv := "source,target,type\nb,a,reshare\nb,a,reshare\nb,c,reshare\nb,c,reshare\nc,d,reshare\n"
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	graphPath := filepath.Join(dir, "graph.json")
	dbPath := filepath.Join(dir, "contagion.db")
	eventsPath := filepath.Join(dir, "events.jsonl")
	t.Cleanup(func() {
		resetFlag(rootCmd.PersistentFlags().Lookup("db"))
		resetFlag(rootCmd.PersistentFlags().Lookup("events"))
		resetFlag(computeCmd.Flags().Lookup("save"))
	})

	execute(t, "build", csvPath, "-o", graphPath, "--db", dbPath, "--events", eventsPath)
	if _, err := os.Stat(graphPath); err != nil {
		t.Fatalf("graph not written: %v", err)
	}

	// b reaches a and c with 0.5 each and d through c with 0.5; c reaches d
	// with certainty.
	out := execute(t, "compute", graphPath, "--order", "5", "--format", "tsv",
		"--save", "--db", dbPath, "--events", eventsPath)
	if want := "b\t1.5\nc\t1\na\t0\nd\t0\n"; out != want {
		t.Errorf("compute output = %q, want %q", out, want)
	}

	out = execute(t, "runs", "--db", dbPath)
	if !strings.Contains(out, "nodes=4 edges=3 order=5") {
		t.Errorf("runs output missing saved run:\n%s", out)
	}

	f, err := os.Open(eventsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var kinds []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var buf bytes.Buffer
		printEvent(&buf, scanner.Text())
		fields := strings.Fields(buf.String())
		if len(fields) > 1 {
			kinds = append(kinds, fields[1])
		}
	}
	want := "build_done,run_start,run_done,run_saved"
	if got := strings.Join(kinds, ","); got != want {
		t.Errorf("event kinds = %s, want %s", got, want)
	}
}

func TestConvert_EdgeListRoundTrip(t *testing.T) {
	// Not parallel: drives the shared rootCmd and viper state.
	dir := t.TempDir()
	in := filepath.Join(dir, "graph.edgelist")
	if err := os.WriteFile(in, []byte("alice bob 0.5\nbob carol 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	roster := filepath.Join(dir, "roster.txt")
	if err := os.WriteFile(roster, []byte("carol\nbob\nalice\nzed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "graph.json")
	execute(t, "convert", in, out, "--roster", roster)
	t.Cleanup(func() { resetFlag(convertCmd.Flags().Lookup("roster")) })

	stats := execute(t, "stats", out, "--buckets", "2")
	for _, want := range []string{"4 (1 isolated)", "[0.50, 1.00]"} {
		if !strings.Contains(stats, want) {
			t.Errorf("stats output missing %q:\n%s", want, stats)
		}
	}
}
