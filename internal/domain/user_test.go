package domain

import "testing"

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid minimal", "Abc12!", false},
		{"valid longer", "Abc123!x", false},
		{"valid all symbols", "aB3@$!%*?&", false},
		{"too short", "Ab1!x", true},
		{"no uppercase", "abc123!x", true},
		{"no lowercase", "ABC123!X", true},
		{"no digit", "Abcdef!x", true},
		{"no symbol", "Abc123xy", true},
		{"symbol outside set", "Abc123#x", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr && err == nil {
				t.Errorf("ValidatePassword(%q) = nil, want error", tt.password)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidatePassword(%q) = %v, want nil", tt.password, err)
			}
			if tt.wantErr && err != nil && err != ErrPasswordPolicy {
				t.Errorf("ValidatePassword(%q) = %v, want ErrPasswordPolicy", tt.password, err)
			}
		})
	}
}

func TestRegisterRequestNormalize(t *testing.T) {
	req := &RegisterRequest{
		FirstName: "  Asha ",
		Email:     " Asha@Example.COM ",
		Password:  "Abc123!x",
	}
	req.Normalize()

	if req.Email != "asha@example.com" {
		t.Errorf("email = %q, want asha@example.com", req.Email)
	}
	if req.FirstName != "Asha" {
		t.Errorf("first name = %q, want Asha", req.FirstName)
	}
}

func TestRegisterRequestValidate(t *testing.T) {
	valid := func() *RegisterRequest {
		return &RegisterRequest{
			FirstName: "Asha",
			Email:     "asha@example.com",
			Password:  "Abc123!x",
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	req := valid()
	req.Email = ""
	if err := req.Validate(); err == nil {
		t.Error("missing email accepted")
	}

	req = valid()
	req.Email = "not-an-email"
	if err := req.Validate(); err == nil {
		t.Error("malformed email accepted")
	}

	req = valid()
	req.FirstName = ""
	if err := req.Validate(); err == nil {
		t.Error("missing first name accepted")
	}

	req = valid()
	req.Password = "weak"
	if err := req.Validate(); err != ErrPasswordPolicy {
		t.Errorf("weak password: err = %v, want ErrPasswordPolicy", err)
	}
}
