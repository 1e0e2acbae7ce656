package multiagent

import (
	"reflect"
	"testing"
	"time"
)

func TestExpertRegistryContents(t *testing.T) {
	reg := NewExpertRegistry(time.Minute)
	want := []string{"execute_bash_command", "find_and_replace_in_file", "list_directory", "read_file", "write_file"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if reg.Count() != 5 {
		t.Errorf("expected 5 tools, got %d", reg.Count())
	}
}

func TestPlannerRegistryContents(t *testing.T) {
	reg := NewPlannerRegistry(time.Minute)
	want := []string{"execute_safe_bash", "list_directory", "read_file"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	// The planner's read variant is a different tool than the expert one.
	planner := reg.Get("read_file")
	expert := NewExpertRegistry(time.Minute).Get("read_file")
	if planner.Description == expert.Description {
		t.Error("expected planner read_file to differ from expert read_file")
	}
}

func TestRegistryForRole(t *testing.T) {
	reg := NewExpertRegistry(time.Minute)

	role, _ := LookupRole(ExpertCodeGenerator)
	tools, err := reg.ForRole(role.ToolNames)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != len(role.ToolNames) {
		t.Errorf("expected %d tools, got %d", len(role.ToolNames), len(tools))
	}
	for i, tool := range tools {
		if tool.Name != role.ToolNames[i] {
			t.Errorf("expected tool %q at %d, got %q", role.ToolNames[i], i, tool.Name)
		}
	}

	if _, err := reg.ForRole([]string{"write_file", "teleport"}); err == nil {
		t.Error("expected error for an unregistered tool name")
	}
}

func TestRegistryDefs(t *testing.T) {
	reg := NewExpertRegistry(time.Minute)

	defs := reg.Defs([]string{"read_file", "write_file"})
	if len(defs) != 2 {
		t.Fatalf("expected 2 defs, got %d", len(defs))
	}
	// Order follows the argument, not the registry.
	if defs[0].Name != "read_file" || defs[1].Name != "write_file" {
		t.Errorf("unexpected order: %s, %s", defs[0].Name, defs[1].Name)
	}
	if defs[0].Description == "" || defs[0].Parameters == nil {
		t.Error("expected description and parameter schema on defs")
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg := NewRegistry()
	if reg.Get("anything") != nil {
		t.Error("expected nil for an unregistered tool")
	}
}
