package typed

import (
	"reflect"
	"testing"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		want    FieldTag
		wantErr bool
	}{
		{
			name: "empty tag",
			tag:  "",
			want: FieldTag{},
		},
		{
			name: "name only",
			tag:  "email",
			want: FieldTag{Name: "email"},
		},
		{
			name: "id option",
			tag:  "user_id,id",
			want: FieldTag{Name: "user_id", ID: true},
		},
		{
			name: "omitempty without name",
			tag:  ",omitempty",
			want: FieldTag{OmitEmpty: true},
		},
		{
			name: "enum values",
			tag:  "status,enum=active|trial|closed",
			want: FieldTag{Name: "status", Enum: []string{"active", "trial", "closed"}},
		},
		{
			name: "everything",
			tag:  "kind,id,omitempty,enum=a|b",
			want: FieldTag{Name: "kind", ID: true, OmitEmpty: true, Enum: []string{"a", "b"}},
		},
		{
			name: "skip",
			tag:  "-",
			want: FieldTag{Skip: true},
		},
		{
			name:    "unknown option",
			tag:     "name,unique",
			wantErr: true,
		},
		{
			name:    "empty enum value",
			tag:     "status,enum=a||b",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTag(tt.tag)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTag(%q) succeeded, want error", tt.tag)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTag(%q): %v", tt.tag, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTag(%q) = %+v, want %+v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestSnakeCase(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Name", "name"},
		{"CreatedAt", "created_at"},
		{"URL", "url"},
		{"UserID", "user_id"},
		{"HTTPStatus", "http_status"},
	}
	for _, tt := range tests {
		if got := snakeCase(tt.in); got != tt.want {
			t.Errorf("snakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
