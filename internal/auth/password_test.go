package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordUsesAccountCost(t *testing.T) {
	hash, err := hashPassword("hunter2")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("bcrypt.Cost: %v", err)
	}
	if cost != passwordCost {
		t.Fatalf("cost = %d, want %d", cost, passwordCost)
	}
}

func TestPasswordMatches(t *testing.T) {
	hash, err := hashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
		wantErr  bool
	}{
		{name: "correct", hash: hash, password: "hunter2", want: true},
		{name: "wrong", hash: hash, password: "hunter3"},
		{name: "corrupt hash", hash: "not-a-bcrypt-hash", password: "hunter2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := passwordMatches(tt.hash, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("match = %v, want %v", got, tt.want)
			}
		})
	}
}
