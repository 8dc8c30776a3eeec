package model

type User struct {
	ID       string `gorm:"primaryKey;column:id;type:VARCHAR;size:64"`
	Username string `gorm:"column:username;type:VARCHAR;size:256;not null"`
	Email    string `gorm:"column:email;type:VARCHAR;size:255"`
}
