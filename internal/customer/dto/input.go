package dto

type Contact struct {
	Phone string
	Name  string
}
