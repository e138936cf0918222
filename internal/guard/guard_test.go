package guard

import (
	"testing"

	"github.com/techbirds/hospital-web-hub/internal/model"
	"github.com/techbirds/hospital-web-hub/internal/session"
)

func stateWith(loading bool, hasIdentity bool, role model.Role) session.State {
	state := session.State{Loading: loading}
	if hasIdentity {
		state.Identity = &model.Identity{SubjectID: "subj-1", Backend: model.BackendLocal}
	}
	if role != "" {
		state.Profile = &model.Profile{
			SubjectID: "subj-1",
			Email:     "user@example.com",
			Role:      role,
			IsActive:  true,
		}
	}
	return state
}

func TestDecide_OrderedRules(t *testing.T) {
	doctorOnly := []model.Role{model.RoleDoctor}

	tests := []struct {
		name        string
		state       session.State
		required    []model.Role
		wantOutcome Outcome
	}{
		// 規則1: loadingは他のすべてに優先する
		{
			name:        "loading wins over everything",
			state:       stateWith(true, true, model.RoleDoctor),
			required:    doctorOnly,
			wantOutcome: OutcomeLoading,
		},
		{
			name:        "loading with no identity",
			state:       stateWith(true, false, ""),
			required:    doctorOnly,
			wantOutcome: OutcomeLoading,
		},
		{
			name:        "loading with identity but no profile",
			state:       stateWith(true, true, ""),
			required:    doctorOnly,
			wantOutcome: OutcomeLoading,
		},
		{
			name:        "loading with role mismatch",
			state:       stateWith(true, true, model.RolePatient),
			required:    doctorOnly,
			wantOutcome: OutcomeLoading,
		},
		// 規則2: identityなし
		{
			name:        "no identity redirects",
			state:       stateWith(false, false, ""),
			required:    doctorOnly,
			wantOutcome: OutcomeSignInRedirect,
		},
		{
			name:        "no identity redirects even with empty role set",
			state:       stateWith(false, false, ""),
			required:    nil,
			wantOutcome: OutcomeSignInRedirect,
		},
		// 規則3: profileなし
		{
			name:        "identity without profile needs setup",
			state:       stateWith(false, true, ""),
			required:    doctorOnly,
			wantOutcome: OutcomeProfileSetup,
		},
		{
			name:        "identity without profile needs setup even with empty role set",
			state:       stateWith(false, true, ""),
			required:    nil,
			wantOutcome: OutcomeProfileSetup,
		},
		// 規則4: ロール不一致
		{
			name:        "role mismatch denied",
			state:       stateWith(false, true, model.RolePatient),
			required:    doctorOnly,
			wantOutcome: OutcomeAccessDenied,
		},
		// 規則5: 通過
		{
			name:        "role match grants content",
			state:       stateWith(false, true, model.RoleDoctor),
			required:    doctorOnly,
			wantOutcome: OutcomeContent,
		},
		{
			name:        "role in multi-role set grants content",
			state:       stateWith(false, true, model.RoleNurse),
			required:    []model.Role{model.RoleAdmin, model.RoleDoctor, model.RoleNurse},
			wantOutcome: OutcomeContent,
		},
		{
			name:        "empty role set admits any profiled user",
			state:       stateWith(false, true, model.RolePatient),
			required:    nil,
			wantOutcome: OutcomeContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.state, tt.required)
			if got.Outcome != tt.wantOutcome {
				t.Errorf("Decide() = %s, want %s", got.Outcome, tt.wantOutcome)
			}
		})
	}
}

func TestDecide_AccessDenied_ExposesActualRole(t *testing.T) {
	state := stateWith(false, true, model.RoleReceptionist)
	decision := Decide(state, []model.Role{model.RoleDoctor, model.RoleAdmin})

	if decision.Outcome != OutcomeAccessDenied {
		t.Fatalf("expected access denied, got %s", decision.Outcome)
	}
	if decision.ActualRole != model.RoleReceptionist {
		t.Errorf("expected actual role receptionist, got %s", decision.ActualRole)
	}
}

func TestDecide_Grant_NoActualRole(t *testing.T) {
	state := stateWith(false, true, model.RoleDoctor)
	decision := Decide(state, []model.Role{model.RoleDoctor})

	if decision.ActualRole != "" {
		t.Errorf("expected empty actual role on grant, got %s", decision.ActualRole)
	}
}
