package client

import "testing"

func TestSolveTask(t *testing.T) {
	tests := []struct {
		content string
		want    float64
		wantErr bool
	}{
		{content: "Add 2 and 3", want: 5},
		{content: "Subtract 10 and 4", want: 6},
		{content: "Multiply 6 and 7", want: 42},
		{content: "Divide 20 and 5", want: 4},
		{content: "Divide 5 and 0", wantErr: true},
		{content: "Frobnicate 1 and 2", wantErr: true},
		{content: "Add 1 2", wantErr: true},
		{content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			got, err := SolveTask(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("want error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SolveTask error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
		})
	}
}
