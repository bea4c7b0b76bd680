package collection

import (
	"strings"
	"testing"
)

func TestValidateFields(t *testing.T) {
	svc, _, _, _ := newTestService(&fakeStore{})

	cases := []struct {
		name   string
		fields [5]string // name, title, description, email, headerImageURL
		want   string    // substring of an expected message, empty for valid
	}{
		{name: "valid", fields: [5]string{"yuletide", "Yuletide", "Rare fandom exchange", "mods@example.com", "https://example.com/banner.png"}},
		{name: "minimal", fields: [5]string{"ab", "x", "", "", ""}},
		{name: "name too short", fields: [5]string{"a", "Title", "", "", ""}, want: "Name must be between"},
		{name: "name too long", fields: [5]string{strings.Repeat("a", 256), "Title", "", "", ""}, want: "Name must be between"},
		{name: "name with spaces", fields: [5]string{"my collection", "Title", "", "", ""}, want: "begin and end with a letter or number"},
		{name: "name with punctuation", fields: [5]string{"best!fics", "Title", "", "", ""}, want: "begin and end with a letter or number"},
		{name: "name leading underscore", fields: [5]string{"_hidden", "Title", "", "", ""}, want: "begin and end with a letter or number"},
		{name: "name trailing underscore", fields: [5]string{"hidden_", "Title", "", "", ""}, want: "begin and end with a letter or number"},
		{name: "name interior underscore ok", fields: [5]string{"rare_pairs", "Title", "", "", ""}},
		{name: "title empty", fields: [5]string{"yuletide", "", "", "", ""}, want: "Title must be between"},
		{name: "title with double comma", fields: [5]string{"yuletide", "One,,Two", "", "", ""}, want: "cannot contain"},
		{name: "description too long", fields: [5]string{"yuletide", "Yuletide", strings.Repeat("d", 1251), "", ""}, want: "Description must be less than"},
		{name: "bad email", fields: [5]string{"yuletide", "Yuletide", "", "not-an-email", ""}, want: "valid address"},
		{name: "header image not http", fields: [5]string{"yuletide", "Yuletide", "", "", "ftp://example.com/banner.png"}, want: "Header image URL"},
		{name: "header image wrong extension", fields: [5]string{"yuletide", "Yuletide", "", "", "https://example.com/banner.svg"}, want: "Header image URL"},
		{name: "header image jpg ok", fields: [5]string{"yuletide", "Yuletide", "", "", "http://example.com/banner.JPG"}},
		{name: "title length counts characters not bytes", fields: [5]string{"yuletide", strings.Repeat("汉", 255), "", "", ""}},
		{name: "description length counts characters not bytes", fields: [5]string{"yuletide", "Yuletide", strings.Repeat("é", 1250), "", ""}},
		{name: "description one character over", fields: [5]string{"yuletide", "Yuletide", strings.Repeat("é", 1251), "", ""}, want: "Description must be less than"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			messages := svc.validateFields(tc.fields[0], tc.fields[1], tc.fields[2], tc.fields[3], tc.fields[4])
			if tc.want == "" {
				if len(messages) != 0 {
					t.Fatalf("expected no messages, got %v", messages)
				}
				return
			}
			for _, msg := range messages {
				if strings.Contains(msg, tc.want) {
					return
				}
			}
			t.Fatalf("expected a message containing %q, got %v", tc.want, messages)
		})
	}
}

func TestValidHeaderImageURL(t *testing.T) {
	if !validHeaderImageURL("https://example.com/a.png?size=large") {
		t.Error("query string after the extension should still validate")
	}
	if !validHeaderImageURL("https://example.com/images/a.gif") {
		t.Error("nested gif path should validate")
	}
}
