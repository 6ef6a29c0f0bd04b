// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	if ToolNotFoundId != 1 {
		t.Errorf("ToolNotFoundId = %d, want 1", ToolNotFoundId)
	}

	values := Values()
	if len(values) != int(ConfigLoadFailedId) {
		t.Fatalf("Values() has %d issues, want %d", len(values), ConfigLoadFailedId)
	}
	for i, v := range values {
		if v.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, v.Id(), i+1)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		contains string
	}{
		{ToolNotFoundId, "systemd tool is missing"},
		{PermissionDeniedId, "Permission denied"},
		{RootfsNotFoundId, "Root filesystem not found"},
		{InvalidImageReferenceId, "Unknown distribution"},
		{MachineBootFailedId, "failed to boot"},
		{PortNotReadyId, "did not come up"},
		{CommandFailedId, "Command failed"},
		{ConfigLoadFailedId, "Failed to load configuration"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			got := Get(tt.id)
			if got == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if !strings.Contains(string(got.MarkdownMsg()), tt.contains) {
				t.Errorf("MarkdownMsg() should contain %q", tt.contains)
			}
		})
	}

	if Get(Id(9999)) != nil {
		t.Error("Get(9999) should return nil")
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	i := Get(MachineBootFailedId)
	links := i.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}
	links[0] = "modified"
	if i.ExtLinks()[0] == "modified" {
		t.Error("ExtLinks() should return a clone")
	}
}

func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	var gotStyle string
	render = func(in, stylePath string) (string, error) {
		gotStyle = stylePath
		return in, nil
	}

	rendered, err := Get(ToolNotFoundId).Render("notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if gotStyle != "notty" {
		t.Errorf("style = %q", gotStyle)
	}
	if !strings.Contains(rendered, "systemd-container") {
		t.Error("rendered output should include the install hint")
	}
	if !strings.Contains(rendered, "## See also") {
		t.Error("rendered output should list links")
	}
}

func TestIssue_RenderWithGlamour(t *testing.T) {
	rendered, err := Get(PortNotReadyId).Render("notty")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(rendered, "did not come up") {
		t.Errorf("glamour output missing heading text:\n%s", rendered)
	}
}
