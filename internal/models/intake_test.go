package models

import "testing"

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestMergeLastWriteWins(t *testing.T) {
	base := ProjectIntakeData{
		Name:            strPtr("Original"),
		SuccessCriteria: []string{"a", "b"},
		TeamSize:        intPtr(8),
	}
	update := ProjectIntakeData{
		Name:            strPtr("Renamed"),
		Objective:       strPtr("New objective"),
		SuccessCriteria: []string{"c"},
	}

	merged := base.Merge(update)

	if *merged.Name != "Renamed" {
		t.Errorf("name = %q, want update to win", *merged.Name)
	}
	if merged.Objective == nil || *merged.Objective != "New objective" {
		t.Error("new objective should be adopted")
	}
	// Lists are replaced wholesale, not appended.
	if len(merged.SuccessCriteria) != 1 || merged.SuccessCriteria[0] != "c" {
		t.Errorf("success criteria = %v, want wholesale replacement", merged.SuccessCriteria)
	}
	// Fields absent from the update are preserved.
	if merged.TeamSize == nil || *merged.TeamSize != 8 {
		t.Error("team size should be preserved when absent from update")
	}
	// The receiver is not mutated.
	if *base.Name != "Original" {
		t.Error("Merge mutated its receiver")
	}
}

func TestMergeAllowsShrinkingValues(t *testing.T) {
	base := ProjectIntakeData{TeamSize: intPtr(50)}
	merged := base.Merge(ProjectIntakeData{TeamSize: intPtr(3)})
	if *merged.TeamSize != 3 {
		t.Errorf("team size = %d, want shrink to 3", *merged.TeamSize)
	}
}

func TestMergeEmptyUpdateIsIdentity(t *testing.T) {
	base := ProjectIntakeData{
		Name:         strPtr("Kept"),
		Dependencies: []string{"upstream"},
	}
	merged := base.Merge(ProjectIntakeData{})
	if *merged.Name != "Kept" || len(merged.Dependencies) != 1 {
		t.Errorf("empty update changed data: %+v", merged)
	}
}

func TestDetermineScale(t *testing.T) {
	cases := []struct {
		teamSize int
		want     ProjectScale
	}{
		{1, ScaleMicro},
		{3, ScaleMicro},
		{4, ScaleSmall},
		{10, ScaleSmall},
		{11, ScaleMedium},
		{50, ScaleMedium},
		{51, ScaleLarge},
		{200, ScaleLarge},
		{201, ScaleEnterprise},
		{5000, ScaleEnterprise},
	}
	for _, c := range cases {
		got := DetermineScale(ProjectIntakeData{TeamSize: intPtr(c.teamSize)})
		if got != c.want {
			t.Errorf("DetermineScale(team=%d) = %q, want %q", c.teamSize, got, c.want)
		}
	}
}

func TestDetermineScaleDefaultsTeamSize(t *testing.T) {
	// No team size falls back to the default of 5, which is small.
	if got := DetermineScale(ProjectIntakeData{}); got != ScaleSmall {
		t.Errorf("DetermineScale(absent) = %q, want small", got)
	}
}

func TestIntakeRequestValidate(t *testing.T) {
	r := IntakeRequest{}
	if err := r.Validate(); err != ErrEmptyMessage {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
	r.Message = "hello"
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateProjectRequestValidate(t *testing.T) {
	r := CreateProjectRequest{}
	if err := r.Validate(); err != ErrMissingProjectName {
		t.Errorf("error = %v, want ErrMissingProjectName", err)
	}
	r.ProjectData.Name = strPtr("P")
	if err := r.Validate(); err != ErrMissingObjective {
		t.Errorf("error = %v, want ErrMissingObjective", err)
	}
	r.ProjectData.Objective = strPtr("")
	if err := r.Validate(); err != ErrMissingObjective {
		t.Errorf("error = %v, want ErrMissingObjective for empty string", err)
	}
	r.ProjectData.Objective = strPtr("O")
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCreateTaskRequestValidate(t *testing.T) {
	r := CreateTaskRequest{}
	if err := r.Validate(); err != ErrMissingProjectID {
		t.Errorf("error = %v, want ErrMissingProjectID", err)
	}
	r.ProjectID = "p1"
	if err := r.Validate(); err != ErrMissingTaskTitle {
		t.Errorf("error = %v, want ErrMissingTaskTitle", err)
	}
	r.Title = "T"
	r.Priority = Priority("urgent-ish")
	if err := r.Validate(); err != ErrInvalidPriority {
		t.Errorf("error = %v, want ErrInvalidPriority", err)
	}
	r.Priority = PriorityHigh
	if err := r.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTaskPatchValidate(t *testing.T) {
	bad := TaskStatus("nope")
	p := TaskPatch{Status: &bad}
	if err := p.Validate(); err != ErrInvalidTaskStatus {
		t.Errorf("error = %v, want ErrInvalidTaskStatus", err)
	}
	ok := TaskStatusBlocked
	p = TaskPatch{Status: &ok}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
