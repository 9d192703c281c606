package chat

import "testing"

func TestParseConversationID(t *testing.T) {
	t.Parallel()

	const user = "0b9478f2-5b2a-4e2f-9d3c-6a1a2b3c4d5e"

	cases := []struct {
		name      string
		in        string
		wantGroup bool
		wantErr   bool
	}{
		{name: "pairwise", in: user},
		{name: "group", in: "thread:" + user, wantGroup: true},
		{name: "malformed user", in: "drop table users", wantErr: true},
		{name: "malformed thread", in: "thread:nope", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, isGroup, err := ParseConversationID(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if isGroup != tc.wantGroup {
				t.Fatalf("isGroup=%v want=%v", isGroup, tc.wantGroup)
			}
		})
	}
}
