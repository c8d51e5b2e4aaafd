package syncbranch

import "testing"

func TestValidateBranchName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"tasque-sync", false},
		{"team/tasque-sync", false},
		{"", true},
		{"main", true},
		{"master", true},
		{"HEAD", true},
		{"-leading-dash", true},
		{"trailing-dash-", true},
		{"has..dots", true},
	}
	for _, c := range cases {
		err := ValidateBranchName(c.name)
		if c.wantErr && err == nil {
			t.Errorf("ValidateBranchName(%q): expected error, got nil", c.name)
		}
		if !c.wantErr && err != nil {
			t.Errorf("ValidateBranchName(%q): unexpected error %v", c.name, err)
		}
	}
}
