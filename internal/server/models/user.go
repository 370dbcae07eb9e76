package models

import "time"

type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	AvatarKey    string
	CoverKey     string
	CreatedAt    time.Time
}
