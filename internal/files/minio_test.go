package files

import "testing"

func TestObjectKey(t *testing.T) {
	cases := []struct {
		name      string
		chapterID string
		fileID    string
		fileName  string
		want      string
	}{
		{name: "keeps extension", chapterID: "ch_1", fileID: "file_a", fileName: "outline.PDF", want: "chapters/ch_1/file_a.pdf"},
		{name: "no extension", chapterID: "ch_1", fileID: "file_b", fileName: "notes", want: "chapters/ch_1/file_b"},
		{name: "ignores directories in name", chapterID: "ch_2", fileID: "file_c", fileName: "../../etc/passwd.txt", want: "chapters/ch_2/file_c.txt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ObjectKey(tc.chapterID, tc.fileID, tc.fileName); got != tc.want {
				t.Fatalf("ObjectKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSafeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"outline.pdf", "outline.pdf"},
		{"..\\..\\cover.png", "cover.png"},
		{"/tmp/evil.sh", "evil.sh"},
		{"  ", "attachment"},
		{"..", "attachment"},
		{"name\x00with\x1fcontrol.txt", "namewithcontrol.txt"},
	}
	for _, tc := range cases {
		if got := SafeName(tc.in); got != tc.want {
			t.Fatalf("SafeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
