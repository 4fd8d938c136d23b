package sqlxrepos

import (
	"testing"

	"github.com/trezcool/chakula/core"
)

func Test_orderBy(t *testing.T) {
	allowed := orderable("name", "created_at")
	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     string
	}{
		{name: "no ordering falls back", want: "created_at DESC"},
		{
			name: "allowed columns pass",
			ordering: []core.DBOrdering{
				{Field: "name", Ascending: true},
				{Field: "created_at"},
			},
			want: "name ASC, created_at DESC",
		},
		{
			name: "unknown column dropped",
			ordering: []core.DBOrdering{
				{Field: "password_hash"},
				{Field: "name", Ascending: true},
			},
			want: "name ASC",
		},
		{
			name:     "hostile column dropped",
			ordering: []core.DBOrdering{{Field: "(SELECT 1); DROP TABLE orders --"}},
			want:     "created_at DESC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := orderBy(tt.ordering, allowed, "created_at DESC"); got != tt.want {
				t.Errorf("orderBy() = %q, want %q", got, tt.want)
			}
		})
	}
}
