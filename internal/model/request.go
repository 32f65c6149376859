package model

type LoginRequest struct {
	UserName string `json:"userName" validate:"omitempty,max=50"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"omitempty,max=72"`
}

type UpdateAccountRequest struct {
	FullName string `json:"fullName" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// RegisterForm mirrors the multipart text fields of a registration.
type RegisterForm struct {
	FullName string `json:"fullName" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	UserName string `json:"userName" validate:"omitempty,max=50,excludesall= /"`
	Password string `json:"password" validate:"omitempty,max=72"`
}
