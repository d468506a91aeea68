package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		in        string
		def       string
		wantPath  string
		wantQuery string
	}{
		{"/login", "", "/login", ""},
		{"/LOGIN", "", "/login", ""},
		{"Dashboard", "", "/dashboard", ""},
		{"/theme-rating/", "", "/theme-rating", ""},
		{"/Theme-Rating?project_id=7", "", "/theme-rating", "project_id=7"},
		{"/", "", "/admin", ""},
		{"/nope", "", "/admin", ""},
		{"/nope", "/login", "/login", ""},
		{"/nope", "/also-unknown", "/admin", ""},
		{"", "", "/admin", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, q := Resolve(tt.in, tt.def)
			assert.Equal(t, tt.wantPath, r.Path)
			assert.Equal(t, tt.wantQuery, q)
		})
	}
}

func TestLookup(t *testing.T) {
	r, ok := Lookup("/Intervention-Selection")
	assert.True(t, ok)
	assert.Equal(t, []string{"interventions", "select"}, r.Command)

	_, ok = Lookup("/settings")
	assert.False(t, ok)
}

func TestAllSortedAndComplete(t *testing.T) {
	all := All()
	assert.Len(t, all, 9)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Path, all[i].Path)
	}
	for _, r := range all {
		assert.NotEmpty(t, r.Command, r.Path)
	}
}
