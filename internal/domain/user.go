package domain

type User struct {
	Id       UserId
	Email    string
	Username string
	Admin    bool
}
