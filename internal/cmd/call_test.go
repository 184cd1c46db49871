package cmd

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeToolName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"evaluate", "mdq_evaluate"},
		{"mdq_evaluate", "mdq_evaluate"},
		{"matrix", "mdq_matrix"},
		{"gaps", "mdq_gaps"},
		{"signals", "mdq_signals"},
		{"capabilities", "mdq_capabilities"},
		{"completeness", "mdq_completeness"},
		{"nonexistent", "mdq_nonexistent"},
	}

	for _, tt := range tests {
		got := normalizeToolName(tt.input)
		if got != tt.want {
			t.Errorf("normalizeToolName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCallCmdRequiresToolOrFlag(t *testing.T) {
	// runCall with no args and no flags should error
	resetFlags(rootCmd)
	err := runCall(callCmd, []string{})
	if err == nil {
		t.Error("runCall with no args should return error")
	}
}

func TestCallList(t *testing.T) {
	setupProject(t)

	out, err := runCmd(t, "call", "--list", "--format", "json")
	if err != nil {
		t.Fatalf("call --list: %v", err)
	}
	var schemas []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &schemas); err != nil {
		t.Fatalf("call --list output is not JSON: %v\n%s", err, out)
	}
	if len(schemas) != 6 {
		t.Errorf("expected 6 tool schemas, got %d", len(schemas))
	}
}

func TestCallSingle(t *testing.T) {
	setupProject(t)

	out, err := runCmd(t, "call", "evaluate", `{"capability_id":"governance_fundamentals","scope_id":"default/snowflake/GOLD"}`)
	if err != nil {
		t.Fatalf("call evaluate: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, out)
	}
	if m["status"] != "NOT_READY" {
		t.Errorf("status = %v", m["status"])
	}

	if _, err := runCmd(t, "call", "evaluate", `{not json`); err == nil {
		t.Error("expected error for malformed JSON args")
	}
}

func TestCallPipe(t *testing.T) {
	setupProject(t)

	input := strings.Join([]string{
		`{"tool":"capabilities"}`,
		`{"tool":"mdq_evaluate","args":{"capability_id":"nope"}}`,
		`garbage`,
	}, "\n")

	out, err := runCmdWithInput(t, input, "call", "--pipe")
	if err != nil {
		t.Fatalf("call --pipe: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 responses, got %d:\n%s", len(lines), out)
	}

	var first, second, third pipeResponse
	json.Unmarshal([]byte(lines[0]), &first)
	json.Unmarshal([]byte(lines[1]), &second)
	json.Unmarshal([]byte(lines[2]), &third)

	if first.Error != "" || len(first.Result) == 0 {
		t.Errorf("capabilities should succeed: %+v", first)
	}
	if !strings.Contains(second.Error, "unknown capability") {
		t.Errorf("expected unknown capability error, got %q", second.Error)
	}
	if !strings.Contains(third.Error, "invalid JSON") {
		t.Errorf("expected invalid JSON error, got %q", third.Error)
	}
}
